package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"facestream/internal/domain/pulse"
)

// Значения по умолчанию.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 50007
	DefaultCameraSource    = "opencv"
	DefaultCameraDevice    = "0"
	DefaultSampler         = "go"
	DefaultWorkerPython    = "python3"
	DefaultWorkerScript    = "python/landmarker_worker.py"
	DefaultMaxSide         = 640
	DefaultBufferSize      = 100
	DefaultPersistInterval = time.Second
	DefaultSummaryInterval = time.Second
	DefaultPulseWindow     = 10 * time.Second
	DefaultNotifyInterval  = time.Minute
	DefaultCSVPath         = "face_summary.csv"
	DefaultHTTPAddr        = "127.0.0.1:8090"
)

// Допустимые источники кадров и способы подсчёта цвета.
var (
	CameraSources = []string{"opencv", "v4l2", "ffmpeg"}
	Samplers      = []string{"go", "opencv"}
)

type Config struct {
	Host string
	Port int

	CameraSource string
	CameraDevice string
	CameraWidth  int
	CameraHeight int
	FFmpegFormat string // например v4l2 или avfoundation, пусто для файлов

	WorkerPython string
	WorkerScript string
	MaxSide      int
	Sampler      string
	SkipEmpty    bool
	Preview      bool
	PidFile      string

	BufferSize      int
	PersistInterval time.Duration
	SummaryInterval time.Duration
	PulseWindow     time.Duration // ряд для оценки пульса, не короче pulse.MinWindow
	CSVPath         string
	DatabaseURL     string
	HTTPAddr        string
	MetricsAddr     string

	TelegramToken  string
	TelegramChats  []int64
	NotifyInterval time.Duration

	LogLevel string
}

// Load читает .env и переменные окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	p := parser{}
	cfg := &Config{
		Host: env("HOST", DefaultHost),
		Port: p.integer("PORT", DefaultPort),

		CameraSource: env("CAMERA_SOURCE", DefaultCameraSource),
		CameraDevice: env("CAMERA_DEVICE", DefaultCameraDevice),
		CameraWidth:  p.integer("CAMERA_WIDTH", 640),
		CameraHeight: p.integer("CAMERA_HEIGHT", 480),
		FFmpegFormat: os.Getenv("FFMPEG_FORMAT"),

		WorkerPython: env("WORKER_PYTHON", DefaultWorkerPython),
		WorkerScript: env("WORKER_SCRIPT", DefaultWorkerScript),
		MaxSide:      p.integer("WORKER_MAX_SIDE", DefaultMaxSide),
		Sampler:      env("SAMPLER", DefaultSampler),
		SkipEmpty:    p.boolean("SKIP_EMPTY", false),
		Preview:      p.boolean("PREVIEW", false),
		PidFile:      os.Getenv("PID_FILE"),

		BufferSize:      p.integer("BUFFER_SIZE", DefaultBufferSize),
		PersistInterval: p.duration("PERSIST_INTERVAL", DefaultPersistInterval),
		SummaryInterval: p.duration("SUMMARY_INTERVAL", DefaultSummaryInterval),
		PulseWindow:     p.duration("PULSE_WINDOW", DefaultPulseWindow),
		CSVPath:         env("CSV_PATH", DefaultCSVPath),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		HTTPAddr:        env("HTTP_ADDR", DefaultHTTPAddr),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChats:  p.int64s("TELEGRAM_CHAT_IDS"),
		NotifyInterval: p.duration("TELEGRAM_INTERVAL", DefaultNotifyInterval),

		LogLevel: env("LOG_LEVEL", "info"),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr адрес слушателя host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate проверяет значения после флагов командной строки.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !contains(CameraSources, c.CameraSource) {
		errs = append(errs, fmt.Errorf("camera source %q, want one of %s", c.CameraSource, strings.Join(CameraSources, ", ")))
	}
	if !contains(Samplers, c.Sampler) {
		errs = append(errs, fmt.Errorf("sampler %q, want one of %s", c.Sampler, strings.Join(Samplers, ", ")))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if c.PersistInterval <= 0 || c.SummaryInterval <= 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	if c.PulseWindow.Seconds() < pulse.MinWindow {
		errs = append(errs, fmt.Errorf("pulse window %s is shorter than %gs", c.PulseWindow, pulse.MinWindow))
	}
	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parser копит ошибки разбора, чтобы показать их все сразу.
type parser struct {
	errs []error
}

func (p *parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) int64s(key string) []int64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		out = append(out, id)
	}
	return out
}

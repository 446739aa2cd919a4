package container

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"facestream/config"
	telegram "facestream/internal/api"
	app "facestream/internal/application"
	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/infrastructure/storage"
	"facestream/internal/infrastructure/transport"
	"facestream/internal/infrastructure/vision"
	"facestream/internal/log"
	"facestream/internal/metrics"
	"facestream/internal/monitor"
)

// Stream сервисы стримера.
type Stream struct {
	Service *app.StreamService
	Metrics *metrics.Metrics

	closers []func() error
}

// NewStream открывает камеру, модель и сокет. onRecord может быть nil.
func NewStream(ctx context.Context, cfg *config.Config, onRecord func(*entity.FaceRecord)) (*Stream, error) {
	s := &Stream{Metrics: metrics.New()}
	ready := false
	defer func() {
		if !ready {
			s.Close()
		}
	}()

	source, err := OpenSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.CameraSource, err)
	}
	s.closers = append(s.closers, source.Close)

	sampler, err := NewSampler(cfg.Sampler)
	if err != nil {
		return nil, err
	}

	landmarker, err := vision.StartWorkerLandmarker(vision.WorkerConfig{
		Python:      cfg.WorkerPython,
		Script:      cfg.WorkerScript,
		MaxSide:     cfg.MaxSide,
		JPEGQuality: vision.DefaultJPEGQuality,
	})
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, landmarker.Close)

	var preview port.Previewer
	if cfg.Preview {
		win, err := vision.NewPreviewWindow("facestream")
		if err != nil {
			return nil, fmt.Errorf("preview: %w", err)
		}
		s.closers = append(s.closers, win.Close)
		preview = win
	}

	sink, err := transport.DialTCPSink(ctx, cfg.Addr())
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, sink.Close)

	s.Service = app.NewStreamService(source, landmarker, sampler, sink, app.StreamOptions{
		SkipEmpty: cfg.SkipEmpty,
		Preview:   preview,
		Observer:  s.Metrics,
		OnRecord:  onRecord,
	})
	ready = true
	return s, nil
}

// Close освобождает ресурсы в обратном порядке.
func (s *Stream) Close() error {
	return closeAll(s.closers)
}

// OpenSource источник кадров по имени из конфигурации.
func OpenSource(cfg *config.Config) (port.FrameSource, error) {
	switch cfg.CameraSource {
	case "opencv":
		src, err := vision.OpenCamera(cfg.CameraDevice)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "v4l2":
		src, err := vision.OpenWebcam(devicePath(cfg.CameraDevice), cfg.CameraWidth, cfg.CameraHeight)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "ffmpeg":
		var args []string
		device := cfg.CameraDevice
		if cfg.FFmpegFormat != "" {
			args = append(args, "-f", cfg.FFmpegFormat)
			if cfg.FFmpegFormat == "v4l2" {
				device = devicePath(device)
			}
		}
		src, err := vision.OpenFFmpegSource(device, args...)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.CameraSource)
	}
}

// NewSampler способ подсчёта цвета по имени.
func NewSampler(name string) (port.ColorSampler, error) {
	switch name {
	case "go":
		return vision.RegionSampler{}, nil
	case "opencv":
		if !vision.OpenCVAvailable {
			return nil, errors.New("opencv sampler needs a build with -tags gocv")
		}
		return vision.CVSampler{}, nil
	default:
		return nil, fmt.Errorf("unknown sampler %q", name)
	}
}

// devicePath "0" превращает в /dev/video0.
func devicePath(device string) string {
	if _, err := strconv.Atoi(device); err == nil {
		return "/dev/video" + device
	}
	return device
}

// Receive сервисы слушателя.
type Receive struct {
	Service    *app.ReceiveService
	Summary    *app.SummaryService
	Repository port.RecordRepository
	Listener   *transport.Listener
	Hub        *monitor.Hub
	Monitor    *monitor.Server
	Metrics    *metrics.Metrics
	Bot        *telegram.Bot // nil без TELEGRAM_TOKEN

	closers []func() error
}

// NewReceive собирает слушатель: хранилище, сводки, мониторинг и бота.
func NewReceive(ctx context.Context, cfg *config.Config) (*Receive, error) {
	r := &Receive{Metrics: metrics.New(), Hub: monitor.NewHub()}
	ready := false
	defer func() {
		if !ready {
			r.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		repo, err := storage.NewPostgresRecordRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		r.closers = append(r.closers, func() error {
			repo.Close(context.Background())
			return nil
		})
		r.Repository = repo
		log.Info("persisting records to postgres")
	} else {
		r.Repository = storage.NewMemoryRecordRepository(storage.DefaultMemoryLimit)
	}

	r.Service = app.NewReceiveService(r.Repository, cfg.BufferSize, r.Hub, r.Metrics)
	r.Service.SetPulseWindow(cfg.PulseWindow)

	writers := []port.SummaryWriter{r.Metrics}
	if cfg.CSVPath != "" {
		csv, err := storage.NewCSVSummaryWriter(cfg.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("open summary csv: %w", err)
		}
		writers = append(writers, csv)
	}
	r.Summary = app.NewSummaryService(r.Service, writers...)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramChats, cfg.NotifyInterval, r.Service, r.Summary)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		r.Summary.AddWriter(bot)
		r.Bot = bot
	}

	r.Monitor = monitor.NewServer(r.Service, r.Summary, r.Hub, r.Metrics.Handler()).WithHistory(r.Repository)

	listener, err := transport.Listen(cfg.Addr(), r.Service)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, listener.Close)
	r.Listener = listener
	ready = true
	return r, nil
}

// Close освобождает ресурсы в обратном порядке.
func (r *Receive) Close() error {
	return closeAll(r.closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

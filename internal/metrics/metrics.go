package metrics

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facestream/internal/domain/entity"
)

// Metrics счётчики стримера и слушателя.
type Metrics struct {
	// стример
	FramesCaptured atomic.Uint64
	CaptureErrors  atomic.Uint64
	FacesDetected  atomic.Uint64
	FramesNoFace   atomic.Uint64
	RecordsSent    atomic.Uint64
	fps            atomic.Uint64 // math.Float64bits
	frameSeconds   atomic.Uint64 // math.Float64bits

	// слушатель
	RecordsReceived  atomic.Uint64
	RecordsRejected  atomic.Uint64
	PersistedRecords atomic.Uint64
	PersistErrors    atomic.Uint64
	SummariesWritten atomic.Uint64
	summarySamples   atomic.Uint64
	heartRate        atomic.Uint64 // math.Float64bits

	registry *prometheus.Registry
}

// New создаёт метрики на собственном реестре.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) float(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return math.Float64frombits(v.Load()) },
	))
}

func (m *Metrics) registerPrometheusMetrics() {
	m.counter("facestream_frames_captured_total", "Frames read from the capture source", &m.FramesCaptured)
	m.counter("facestream_capture_errors_total", "Failed capture attempts", &m.CaptureErrors)
	m.counter("facestream_faces_detected_total", "Frames with a detected face", &m.FacesDetected)
	m.counter("facestream_frames_without_face_total", "Frames without a face", &m.FramesNoFace)
	m.counter("facestream_records_sent_total", "Records written to the socket", &m.RecordsSent)
	m.float("facestream_stream_fps", "Rolling frames per second of the stream loop", &m.fps)
	m.float("facestream_frame_seconds", "Duration of the last loop iteration", &m.frameSeconds)

	m.counter("facestream_records_received_total", "Records received by the listener", &m.RecordsReceived)
	m.counter("facestream_records_rejected_total", "Malformed lines skipped by the listener", &m.RecordsRejected)
	m.counter("facestream_records_persisted_total", "Records saved to the repository", &m.PersistedRecords)
	m.counter("facestream_persist_errors_total", "Failed repository saves", &m.PersistErrors)
	m.counter("facestream_summaries_total", "Summaries built", &m.SummariesWritten)
	m.counter("facestream_summary_samples", "Face records in the last summary", &m.summarySamples)
	m.float("facestream_heart_rate_bpm", "Heart rate estimate of the last summary", &m.heartRate)
}

func (m *Metrics) FrameCaptured() { m.FramesCaptured.Add(1) }
func (m *Metrics) CaptureFailed() { m.CaptureErrors.Add(1) }
func (m *Metrics) RecordSent() { m.RecordsSent.Add(1) }

func (m *Metrics) FaceDetected(found bool) {
	if found {
		m.FacesDetected.Add(1)
		return
	}
	m.FramesNoFace.Add(1)
}

// FrameProcessed запоминает частоту и длительность последнего кадра.
func (m *Metrics) FrameProcessed(fps, seconds float64) {
	m.fps.Store(math.Float64bits(fps))
	m.frameSeconds.Store(math.Float64bits(seconds))
}

// FPS последняя частота цикла.
func (m *Metrics) FPS() float64 {
	return math.Float64frombits(m.fps.Load())
}

func (m *Metrics) RecordReceived() { m.RecordsReceived.Add(1) }
func (m *Metrics) RecordRejected() { m.RecordsRejected.Add(1) }
func (m *Metrics) PersistFailed() { m.PersistErrors.Add(1) }
func (m *Metrics) RecordsPersisted(n int) { m.PersistedRecords.Add(uint64(n)) }

// WriteSummary обновляет показатели сводки.
func (m *Metrics) WriteSummary(ctx context.Context, s entity.Summary) error {
	m.SummariesWritten.Add(1)
	m.summarySamples.Store(uint64(s.Samples))
	m.heartRate.Store(math.Float64bits(s.HeartRate))
	return nil
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer отдельный сервер /metrics до отмены контекста.
func (m *Metrics) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/log"
)

// DefaultRetryDelay пауза после неудачного захвата кадра.
const DefaultRetryDelay = 10 * time.Millisecond

// captureWarnAfter после стольких неудач подряд пишем предупреждение.
const captureWarnAfter = 100

// StreamOptions настройки цикла захвата.
type StreamOptions struct {
	RetryDelay time.Duration
	SkipEmpty  bool // не отправлять записи для кадров без лица
	Preview    port.Previewer
	Observer   port.StreamObserver
	OnRecord   func(rec *entity.FaceRecord)
	Now        func() time.Time
}

// StreamService цикл кадр -> модель -> цвет кожи -> запись -> сокет.
type StreamService struct {
	source     port.FrameSource
	landmarker port.FaceLandmarker
	sampler    port.ColorSampler
	sink       port.RecordSink
	opts       StreamOptions
	timer      *FrameTimer
}

// NewStreamService создаёт сервис потоковой отправки записей лица.
func NewStreamService(source port.FrameSource, landmarker port.FaceLandmarker, sampler port.ColorSampler, sink port.RecordSink, opts StreamOptions) *StreamService {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StreamService{
		source:     source,
		landmarker: landmarker,
		sampler:    sampler,
		sink:       sink,
		opts:       opts,
		timer:      NewFrameTimer(timerWindow),
	}
}

// Run крутит цикл до отмены контекста, конца источника или ошибки модели/сокета.
func (s *StreamService) Run(ctx context.Context) error {
	var processed uint64
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		started := s.opts.Now()

		frame, err := s.source.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Info("frame source exhausted", "frames", processed)
				return nil
			case ctx.Err() != nil:
				return nil
			}
			s.opts.Observer.CaptureFailed()
			failures++
			if failures == captureWarnAfter {
				log.Warn("capture keeps failing", "attempts", failures, "error", err)
			} else {
				log.Debug("capture failed", "error", err)
			}
			if !sleep(ctx, s.opts.RetryDelay) {
				return nil
			}
			continue
		}
		s.opts.Observer.FrameCaptured()
		failures = 0

		rec, sample, err := s.ProcessFrame(ctx, frame)
		if err != nil {
			return err
		}
		if rec != nil {
			if err := s.sink.Send(ctx, rec); err != nil {
				return fmt.Errorf("send record: %w", err)
			}
			s.opts.Observer.RecordSent()
			if s.opts.OnRecord != nil {
				s.opts.OnRecord(rec)
			}
		}

		elapsed := s.opts.Now().Sub(started)
		fps := s.timer.Add(elapsed)
		s.opts.Observer.FrameProcessed(fps, elapsed.Seconds())
		processed++
		if processed%timerWindow == 0 && fps > 0 {
			log.Debug("stream rate", "fps", fps, "frames", processed)
		}

		if s.opts.Preview != nil && sample != nil && !s.opts.Preview.Show(frame, *sample) {
			log.Info("preview closed")
			return nil
		}
	}
}

// ProcessFrame считает запись для одного кадра.
// Для кадра без лица возвращает пустую запись или nil при SkipEmpty.
func (s *StreamService) ProcessFrame(ctx context.Context, frame *entity.Frame) (*entity.FaceRecord, *entity.ColorSample, error) {
	det, err := s.landmarker.Detect(ctx, frame)
	if err != nil {
		return nil, nil, fmt.Errorf("detect face: %w", err)
	}

	at := frame.CapturedAt
	if at.IsZero() {
		at = s.opts.Now()
	}

	if det == nil || len(det.Landmarks) == 0 {
		s.opts.Observer.FaceDetected(false)
		if s.opts.SkipEmpty {
			return nil, nil, nil
		}
		return entity.EmptyFaceRecord(at), nil, nil
	}
	s.opts.Observer.FaceDetected(true)

	sample, err := s.sampler.Sample(frame.Image, det.Landmarks)
	if err != nil {
		return nil, nil, fmt.Errorf("sample skin color: %w", err)
	}
	return entity.NewFaceRecord(at, det, sample.Color), &sample, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopObserver struct{}

func (nopObserver) FrameCaptured() {}
func (nopObserver) CaptureFailed() {}
func (nopObserver) FaceDetected(bool) {}
func (nopObserver) RecordSent() {}
func (nopObserver) FrameProcessed(float64, float64) {}

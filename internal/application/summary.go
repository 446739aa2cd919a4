package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/domain/pulse"
	"facestream/internal/log"
)

// RecordSource то, из чего строится сводка. Records для средних,
// History более длинный ряд для пульса.
type RecordSource interface {
	Records() []*entity.FaceRecord
	History() []*entity.FaceRecord
	Markers() entity.Markers
}

// Summarize сводка по записям с лицом: средний цвет и выражения по recs,
// пульс по history (по recs, если history пуст).
func Summarize(at time.Time, markers entity.Markers, recs, history []*entity.FaceRecord) entity.Summary {
	sum := entity.Summary{
		At:          at,
		Markers:     markers,
		Blendshapes: make(map[string]float64),
	}

	faces := make([]*entity.FaceRecord, 0, len(recs))
	for _, r := range recs {
		if r != nil && r.HasFace() {
			faces = append(faces, r)
		}
	}
	sum.Samples = len(faces)
	if len(faces) == 0 {
		return sum
	}

	counts := make(map[string]int)
	for _, r := range faces {
		sum.AvgRGB.R += r.AvgRGB.R
		sum.AvgRGB.G += r.AvgRGB.G
		sum.AvgRGB.B += r.AvgRGB.B
		for name, score := range r.Blendshapes {
			sum.Blendshapes[name] += score
			counts[name]++
		}
	}
	n := float64(len(faces))
	sum.AvgRGB.R /= n
	sum.AvgRGB.G /= n
	sum.AvgRGB.B /= n
	for name, c := range counts {
		sum.Blendshapes[name] /= float64(c)
	}

	if len(history) == 0 {
		history = recs
	}
	sum.HeartRate = pulse.FromRecords(history)
	return sum
}

// SummaryService раз в интервал строит сводку и отдаёт её писателям.
type SummaryService struct {
	source  RecordSource
	writers []port.SummaryWriter
	now     func() time.Time

	mu     sync.RWMutex
	latest entity.Summary
	has    bool
}

// NewSummaryService создаёт сервис сводок.
func NewSummaryService(source RecordSource, writers ...port.SummaryWriter) *SummaryService {
	return &SummaryService{source: source, writers: writers, now: time.Now}
}

// AddWriter подключает ещё одного получателя сводок.
func (s *SummaryService) AddWriter(w port.SummaryWriter) {
	s.mu.Lock()
	s.writers = append(s.writers, w)
	s.mu.Unlock()
}

// Tick строит одну сводку и передаёт её всем писателям.
func (s *SummaryService) Tick(ctx context.Context) (entity.Summary, error) {
	sum := Summarize(s.now(), s.source.Markers(), s.source.Records(), s.source.History())

	s.mu.Lock()
	s.latest, s.has = sum, true
	writers := slices.Clone(s.writers)
	s.mu.Unlock()

	var errs []error
	for _, w := range writers {
		if err := w.WriteSummary(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return sum, errors.Join(errs...)
}

// Latest последняя построенная сводка.
func (s *SummaryService) Latest() (entity.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

// Run вызывает Tick раз в interval до отмены контекста.
func (s *SummaryService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				log.Warn("summary write failed", "error", err)
			}
		}
	}
}

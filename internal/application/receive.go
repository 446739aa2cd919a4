package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/log"
)

const (
	// DefaultBufferSize сколько последних записей держит слушатель.
	DefaultBufferSize = 100
	// DefaultPulseWindow длина ряда для оценки пульса.
	DefaultPulseWindow = 10 * time.Second

	// предел истории для пульса: 30 с при 120 кадрах в секунду
	maxHistory = 3600
)

// RecordPublisher получатель каждой принятой записи (websocket и т.п.).
type RecordPublisher interface {
	Publish(obs entity.Observation)
}

// ReceiveObserver счётчики слушателя.
type ReceiveObserver interface {
	RecordReceived()
	RecordRejected()
	RecordsPersisted(n int)
	PersistFailed()
}

// ReceiveService принимает записи от стримера, держит буфер и сохраняет новые записи.
type ReceiveService struct {
	repo      port.RecordRepository
	publisher RecordPublisher
	observer  ReceiveObserver
	newID     func() string
	now       func() time.Time

	mu        sync.Mutex
	buffer    *ring[entity.Observation]
	history   *ring[*entity.FaceRecord] // отдельно от buffer, для пульса
	window    time.Duration
	session   string
	markers   entity.Markers
	lastSaved float64
}

// NewReceiveService создаёт сервис с буфером на bufferSize записей.
// publisher и observer могут быть nil.
func NewReceiveService(repo port.RecordRepository, bufferSize int, publisher RecordPublisher, observer ReceiveObserver) *ReceiveService {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &ReceiveService{
		repo:      repo,
		publisher: publisher,
		observer:  observer,
		newID:     uuid.NewString,
		now:       time.Now,
		buffer:    newRing[entity.Observation](bufferSize),
		history:   newRing[*entity.FaceRecord](maxHistory),
		window:    DefaultPulseWindow,
	}
}

// SetPulseWindow задаёт, за сколько секунд History отдаёт записи.
func (s *ReceiveService) SetPulseWindow(d time.Duration) {
	if d <= 0 {
		d = DefaultPulseWindow
	}
	s.mu.Lock()
	s.window = d
	s.mu.Unlock()
}

// Connected начинает новую сессию для подключившегося стримера.
func (s *ReceiveService) Connected(remote string) {
	id := s.newID()
	s.mu.Lock()
	s.session = id
	// ряд прошлого стримера с разрывом во времени пульсу не нужен
	s.history = newRing[*entity.FaceRecord](maxHistory)
	s.mu.Unlock()
	log.Info("streamer connected", "remote", remote, "session", id)
}

// Disconnected закрывает сессию.
func (s *ReceiveService) Disconnected(remote string, err error) {
	if err != nil {
		log.Warn("streamer disconnected", "remote", remote, "error", err)
		return
	}
	log.Info("streamer disconnected", "remote", remote)
}

// Rejected строка от стримера не разобрана, пропускаем её.
func (s *ReceiveService) Rejected(remote string, err error) {
	log.Warn("malformed record skipped", "remote", remote, "error", err)
	if s.observer != nil {
		s.observer.RecordRejected()
	}
}

// Ingest кладёт запись в буфер и рассылает подписчикам.
func (s *ReceiveService) Ingest(_ context.Context, rec *entity.FaceRecord) {
	s.mu.Lock()
	obs := entity.Observation{SessionID: s.session, ReceivedAt: s.now(), Record: rec}
	s.buffer.push(obs)
	s.history.push(rec)
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.RecordReceived()
	}
	if s.publisher != nil {
		s.publisher.Publish(obs)
	}
}

// Snapshot копия буфера от старых к новым.
func (s *ReceiveService) Snapshot() []entity.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.snapshot()
}

// Records записи буфера без метаданных.
func (s *ReceiveService) Records() []*entity.FaceRecord {
	snap := s.Snapshot()
	out := make([]*entity.FaceRecord, len(snap))
	for i, o := range snap {
		out[i] = o.Record
	}
	return out
}

// History записи текущей сессии за последние window секунд по меткам стримера.
func (s *ReceiveService) History() []*entity.FaceRecord {
	s.mu.Lock()
	recs := s.history.snapshot()
	window := s.window.Seconds()
	s.mu.Unlock()

	if len(recs) == 0 {
		return nil
	}
	from := recs[len(recs)-1].Timestamp - window
	start := sort.Search(len(recs), func(i int) bool { return recs[i].Timestamp >= from })
	return recs[start:]
}

// Latest последняя принятая запись.
func (s *ReceiveService) Latest() (entity.Observation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.last()
}

// SetMarker меняет отметку 1..3.
func (s *ReceiveService) SetMarker(n, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers.Set(n, value)
}

// Markers текущее состояние отметок.
func (s *ReceiveService) Markers() entity.Markers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers
}

// Flush сохраняет записи новее последней сохранённой. Возвращает число сохранённых.
func (s *ReceiveService) Flush(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}

	s.mu.Lock()
	last := s.lastSaved
	var pending []entity.Observation
	for _, o := range s.buffer.snapshot() {
		if o.Record.Timestamp > last {
			pending = append(pending, o)
		}
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}
	if err := s.repo.Save(ctx, pending); err != nil {
		if s.observer != nil {
			s.observer.PersistFailed()
		}
		return 0, fmt.Errorf("save %d records: %w", len(pending), err)
	}

	newest := last
	for _, o := range pending {
		newest = max(newest, o.Record.Timestamp)
	}
	s.mu.Lock()
	s.lastSaved = max(s.lastSaved, newest)
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.RecordsPersisted(len(pending))
	}
	return len(pending), nil
}

// RunPersistence раз в interval вызывает Flush. При остановке сохраняет остаток.
func (s *ReceiveService) RunPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := s.Flush(flushCtx); err != nil {
				log.Error("final flush failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if _, err := s.Flush(ctx); err != nil {
				log.Warn("flush failed", "error", err)
			}
		}
	}
}

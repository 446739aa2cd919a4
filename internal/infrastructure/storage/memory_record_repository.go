package storage

import (
	"context"
	"sync"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
)

// DefaultMemoryLimit сколько наблюдений держит in-memory хранилище.
const DefaultMemoryLimit = 10000

// MemoryRecordRepository in-memory хранилище наблюдений
type MemoryRecordRepository struct {
	mu    sync.RWMutex
	obs   []entity.Observation
	limit int
}

// NewMemoryRecordRepository создаёт новое in-memory хранилище на limit наблюдений
func NewMemoryRecordRepository(limit int) *MemoryRecordRepository {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryRecordRepository{limit: limit}
}

// Save добавляет наблюдения, самые старые вытесняются при переполнении
func (r *MemoryRecordRepository) Save(ctx context.Context, obs []entity.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.obs = append(r.obs, obs...)
	if over := len(r.obs) - r.limit; over > 0 {
		r.obs = append(r.obs[:0:0], r.obs[over:]...)
	}
	return nil
}

// Recent возвращает последние limit наблюдений
func (r *MemoryRecordRepository) Recent(ctx context.Context, limit int) ([]entity.Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if limit > 0 && len(r.obs) > limit {
		start = len(r.obs) - limit
	}
	out := make([]entity.Observation, len(r.obs)-start)
	copy(out, r.obs[start:])
	return out, nil
}

// Len число сохранённых наблюдений
func (r *MemoryRecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.obs)
}

// Проверка соответствия интерфейсу
var _ port.RecordRepository = (*MemoryRecordRepository)(nil)

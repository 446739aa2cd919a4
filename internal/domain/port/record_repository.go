package port

import (
	"context"

	"facestream/internal/domain/entity"
)

// RecordRepository интерфейс хранилища принятых записей
type RecordRepository interface {
	// Save сохраняет пачку наблюдений
	Save(ctx context.Context, obs []entity.Observation) error

	// Recent возвращает последние limit наблюдений, новые в конце
	Recent(ctx context.Context, limit int) ([]entity.Observation, error)
}

// SummaryWriter получатель сводок (CSV, чат)
type SummaryWriter interface {
	WriteSummary(ctx context.Context, s entity.Summary) error
}

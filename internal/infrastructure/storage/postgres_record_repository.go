package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
)

// PostgresRecordRepository хранит наблюдения в PostgreSQL.
// pgx.Conn не потокобезопасен, поэтому доступ под mu.
type PostgresRecordRepository struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// NewPostgresRecordRepository подключается к базе и создаёт схему, если её нет.
func NewPostgresRecordRepository(ctx context.Context, connString string) (*PostgresRecordRepository, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &PostgresRecordRepository{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS face_observations (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			source_ts DOUBLE PRECISION NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			r DOUBLE PRECISION NOT NULL,
			g DOUBLE PRECISION NOT NULL,
			b DOUBLE PRECISION NOT NULL,
			blendshapes JSONB NOT NULL,
			rotation_matrix JSONB,
			translation_vector JSONB
		);
		CREATE INDEX IF NOT EXISTS face_observations_session_ts_idx ON face_observations (session_id, source_ts);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close закрывает соединение.
func (s *PostgresRecordRepository) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close(ctx)
}

// Save пишет пачку наблюдений одним батчем.
func (s *PostgresRecordRepository) Save(ctx context.Context, obs []entity.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range obs {
		rec := o.Record
		blendshapes, err := json.Marshal(rec.Blendshapes)
		if err != nil {
			return err
		}
		rotation, err := nullableJSON(rec.RotationMatrix, len(rec.RotationMatrix) > 0)
		if err != nil {
			return err
		}
		translation, err := nullableJSON(rec.TranslationVector, len(rec.TranslationVector) > 0)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO face_observations
				(session_id, source_ts, received_at, r, g, b, blendshapes, rotation_matrix, translation_vector)
			VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb)
		`, o.SessionID, rec.Timestamp, o.ReceivedAt, rec.AvgRGB.R, rec.AvgRGB.G, rec.AvgRGB.B,
			string(blendshapes), rotation, translation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	br := s.conn.SendBatch(ctx, batch)
	for range obs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return br.Close()
}

// Recent возвращает последние limit наблюдений в порядке времени.
func (s *PostgresRecordRepository) Recent(ctx context.Context, limit int) ([]entity.Observation, error) {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT session_id, source_ts, received_at, r, g, b, blendshapes, rotation_matrix, translation_vector
		FROM (
			SELECT * FROM face_observations ORDER BY source_ts DESC LIMIT $1
		) latest
		ORDER BY source_ts ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Observation
	for rows.Next() {
		var (
			o           entity.Observation
			rec         entity.FaceRecord
			receivedAt  time.Time
			blendshapes []byte
			rotation    []byte
			translation []byte
		)
		if err := rows.Scan(&o.SessionID, &rec.Timestamp, &receivedAt, &rec.AvgRGB.R, &rec.AvgRGB.G, &rec.AvgRGB.B,
			&blendshapes, &rotation, &translation); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blendshapes, &rec.Blendshapes); err != nil {
			return nil, fmt.Errorf("decode blendshapes: %w", err)
		}
		if rotation != nil {
			if err := json.Unmarshal(rotation, &rec.RotationMatrix); err != nil {
				return nil, fmt.Errorf("decode rotation: %w", err)
			}
		}
		if translation != nil {
			if err := json.Unmarshal(translation, &rec.TranslationVector); err != nil {
				return nil, fmt.Errorf("decode translation: %w", err)
			}
		}
		o.ReceivedAt = receivedAt
		o.Record = &rec
		out = append(out, o)
	}
	return out, rows.Err()
}

// nullableJSON кодирует значение или возвращает nil для NULL.
func nullableJSON(v any, present bool) (*string, error) {
	if !present {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

var _ port.RecordRepository = (*PostgresRecordRepository)(nil)

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"facestream/internal/domain/entity"
)

// TestPostgresRecordRepository поднимает настоящий Postgres в контейнере. Нужен Docker.
func TestPostgresRecordRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("facestream_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start postgres container: %v", err)
	}
	defer func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := NewPostgresRecordRepository(ctx, connStr)
	require.NoError(t, err)
	defer repo.Close(ctx)

	received := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	obs := []entity.Observation{
		{
			SessionID:  "session-a",
			ReceivedAt: received,
			Record: &entity.FaceRecord{
				Timestamp:   100.5,
				Blendshapes: map[string]float64{"jawOpen": 0.25},
				AvgRGB:      entity.RGB{R: 180, G: 130, B: 110},
			},
		},
		{
			SessionID:  "session-a",
			ReceivedAt: received.Add(time.Second),
			Record: &entity.FaceRecord{
				Timestamp:         101.5,
				Blendshapes:       map[string]float64{},
				RotationMatrix:    [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
				TranslationVector: []float64{0, 0, -40},
			},
		},
	}
	require.NoError(t, repo.Save(ctx, obs))

	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "session-a", got[0].SessionID)
	require.Equal(t, 100.5, got[0].Record.Timestamp)
	require.Equal(t, 0.25, got[0].Record.Blendshapes["jawOpen"])
	require.Nil(t, got[0].Record.RotationMatrix)
	require.True(t, got[0].ReceivedAt.Equal(received))

	require.Equal(t, []float64{0, 0, -40}, got[1].Record.TranslationVector)
	require.Len(t, got[1].Record.RotationMatrix, 3)

	latest, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, 101.5, latest[0].Record.Timestamp)
}

package port

import (
	"context"

	"facestream/internal/domain/entity"
)

// RecordSink получатель записей кадров
type RecordSink interface {
	// Send отправляет запись целиком или возвращает ошибку
	Send(ctx context.Context, rec *entity.FaceRecord) error

	Close() error
}

// StreamObserver наблюдатель цикла захвата (метрики, прогресс)
type StreamObserver interface {
	FrameCaptured()
	CaptureFailed()
	FaceDetected(found bool)
	RecordSent()
	FrameProcessed(fps float64, seconds float64)
}

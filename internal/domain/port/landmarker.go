package port

import (
	"context"
	"image"

	"facestream/internal/domain/entity"
)

// FaceLandmarker внешняя модель: точки лица, выражения, поза
type FaceLandmarker interface {
	// Detect возвращает первое найденное лицо или nil, если лица нет
	Detect(ctx context.Context, frame *entity.Frame) (*entity.FaceDetection, error)

	Close() error
}

// ColorSampler считает средний цвет кожи по точкам лица
type ColorSampler interface {
	Sample(img image.Image, landmarks []entity.Landmark) (entity.ColorSample, error)
}

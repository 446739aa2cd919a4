package vision

import (
	"image"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/domain/region"
)

// RegionSampler считает цвет кожи на чистом Go.
type RegionSampler struct{}

var _ port.ColorSampler = RegionSampler{}

func (RegionSampler) Sample(img image.Image, landmarks []entity.Landmark) (entity.ColorSample, error) {
	return region.Sample(img, landmarks)
}

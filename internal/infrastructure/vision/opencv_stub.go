//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"
	"image"

	"facestream/internal/domain/entity"
)

// OpenCVAvailable собрано ли с OpenCV.
const OpenCVAvailable = false

var errNoOpenCV = errors.New("gocv build tag is not enabled")

// CameraSource заглушка без OpenCV.
type CameraSource struct{}

// OpenCamera возвращает ошибку, если сборка без тега gocv.
func OpenCamera(device string) (*CameraSource, error) {
	return nil, errNoOpenCV
}

func (c *CameraSource) Read(ctx context.Context) (*entity.Frame, error) {
	return nil, errNoOpenCV
}

func (c *CameraSource) Close() error {
	return nil
}

// PreviewWindow заглушка без OpenCV.
type PreviewWindow struct{}

// NewPreviewWindow возвращает ошибку, если сборка без тега gocv.
func NewPreviewWindow(title string) (*PreviewWindow, error) {
	return nil, errNoOpenCV
}

func (p *PreviewWindow) Show(frame *entity.Frame, sample entity.ColorSample) bool {
	return false
}

func (p *PreviewWindow) Close() error {
	return nil
}

// CVSampler заглушка без OpenCV.
type CVSampler struct{}

// Sample возвращает ошибку, если сборка без тега gocv.
func (CVSampler) Sample(img image.Image, landmarks []entity.Landmark) (entity.ColorSample, error) {
	return entity.ColorSample{}, errNoOpenCV
}

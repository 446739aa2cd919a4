//go:build !linux
// +build !linux

package vision

import (
	"context"

	"github.com/pkg/errors"

	"facestream/internal/domain/entity"
)

// WebcamSource на этой платформе недоступен.
type WebcamSource struct{}

// OpenWebcam возвращает ошибку: V4L2 есть только в linux.
func OpenWebcam(device string, width, height int) (*WebcamSource, error) {
	return nil, errors.Errorf("v4l2 capture of %s is only available on linux", device)
}

func (s *WebcamSource) Read(ctx context.Context) (*entity.Frame, error) {
	return nil, errors.New("v4l2 capture is only available on linux")
}

func (s *WebcamSource) Close() error {
	return nil
}

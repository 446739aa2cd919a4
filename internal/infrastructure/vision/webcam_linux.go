//go:build linux
// +build linux

package vision

import (
	"bytes"
	"context"
	"image/jpeg"
	"time"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
)

// pixFmtMJPEG fourcc 'MJPG'.
const pixFmtMJPEG webcam.PixelFormat = 0x47504A4D

// WebcamSource кадры MJPEG напрямую из V4L2.
type WebcamSource struct {
	cam     *webcam.Webcam
	index   uint64
	timeout uint32
	now     func() time.Time
}

var _ port.FrameSource = (*WebcamSource)(nil)

// OpenWebcam открывает устройство вроде /dev/video0 в режиме MJPEG.
func OpenWebcam(device string, width, height int) (*WebcamSource, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "can not open device")
	}

	if _, ok := cam.GetSupportedFormats()[pixFmtMJPEG]; !ok {
		cam.Close()
		return nil, errors.Errorf("%s does not support MJPEG", device)
	}
	if _, _, _, err := cam.SetImageFormat(pixFmtMJPEG, uint32(width), uint32(height)); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "can not set image format")
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "can not start streaming")
	}

	return &WebcamSource{cam: cam, timeout: 1, now: time.Now}, nil
}

// Read ждёт кадр не дольше секунды. Таймаут даёт ErrFrameUnavailable.
func (s *WebcamSource) Read(ctx context.Context) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := s.cam.WaitForFrame(s.timeout)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, errors.Wrap(port.ErrFrameUnavailable, "frame wait timeout")
	default:
		return nil, errors.Wrap(err, "frame wait failed")
	}

	data, err := s.cam.ReadFrame()
	if err != nil {
		return nil, errors.Wrap(err, "read frame failed")
	}
	if len(data) == 0 {
		return nil, errors.Wrap(port.ErrFrameUnavailable, "empty frame")
	}
	at := s.now()

	img, err := jpeg.Decode(bytes.NewReader(withHuffmanTables(data)))
	if err != nil {
		return nil, errors.Wrapf(port.ErrFrameUnavailable, "decode jpeg: %v", err)
	}
	frame := &entity.Frame{Image: img, CapturedAt: at, Index: s.index}
	s.index++
	return frame, nil
}

// Close останавливает поток и освобождает устройство.
func (s *WebcamSource) Close() error {
	s.cam.StopStreaming()
	return s.cam.Close()
}

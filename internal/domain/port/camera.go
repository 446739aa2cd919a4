package port

import (
	"context"
	"errors"

	"facestream/internal/domain/entity"
)

// ErrFrameUnavailable кадр не получен, источник стоит повторить позже.
var ErrFrameUnavailable = errors.New("frame unavailable")

// FrameSource источник кадров (камера, файл, поток ffmpeg)
type FrameSource interface {
	// Read блокируется до следующего кадра.
	// io.EOF означает конец источника, ErrFrameUnavailable временный сбой.
	Read(ctx context.Context) (*entity.Frame, error)

	// Close освобождает устройство
	Close() error
}

// Previewer окно предпросмотра маски
type Previewer interface {
	// Show показывает кадр с наложенной маской. Возвращает false, если пользователь закрыл окно.
	Show(frame *entity.Frame, sample entity.ColorSample) bool

	Close() error
}

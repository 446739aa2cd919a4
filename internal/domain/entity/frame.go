package entity

import (
	"image"
	"time"
)

// Frame кадр с камеры.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
	Index      uint64 // порядковый номер кадра в источнике
}

// Size возвращает ширину и высоту кадра.
func (f *Frame) Size() (int, int) {
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

package entity

import "image"

// Landmark нормализованная точка лица от модели (x, y в долях кадра).
type Landmark struct {
	X float64 // доля ширины кадра
	Y float64 // доля высоты кадра
	Z float64 // глубина относительно центра головы
}

// Pixel переводит точку в координаты кадра w×h.
// Дробная часть отбрасывается.
func (l Landmark) Pixel(w, h int) image.Point {
	return image.Pt(int(l.X*float64(w)), int(l.Y*float64(h)))
}

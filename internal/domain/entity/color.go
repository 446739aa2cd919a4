package entity

import (
	"encoding/json"
	"fmt"
	"image"
)

// RGB средние значения каналов в шкале 0..255.
type RGB struct {
	R, G, B float64
}

// MarshalJSON кодирует цвет массивом [r, g, b].
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{c.R, c.G, c.B})
}

// UnmarshalJSON принимает только массив из трёх чисел.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 3 {
		return fmt.Errorf("avg_rgb: expected 3 channels, got %d", len(v))
	}
	c.R, c.G, c.B = v[0], v[1], v[2]
	return nil
}

// ColorSample цвет кожи, посчитанный по маске одного кадра.
type ColorSample struct {
	Color  RGB
	Pixels int         // число пикселей под маской
	Mask   image.Image // маска для предпросмотра, может быть nil
}

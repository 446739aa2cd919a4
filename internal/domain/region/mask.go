package region

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"facestream/internal/domain/entity"
)

// ErrLandmarkIndex индекс контура вне набора точек модели.
var ErrLandmarkIndex = errors.New("landmark index out of range")

// Mask двоичная маска кадра: 0xff внутри области, 0 снаружи.
type Mask struct {
	*image.Alpha
}

// NewMask создаёт пустую маску для прямоугольника кадра.
func NewMask(r image.Rectangle) *Mask {
	return &Mask{Alpha: image.NewAlpha(r)}
}

// Fill заливает многоугольник значением inside.
// Пиксель попадает в многоугольник, если туда попадает его центр (правило чёт-нечет).
func (m *Mask) Fill(poly []image.Point, inside bool) {
	if len(poly) < 3 {
		return
	}
	var value uint8
	if inside {
		value = 0xff
	}

	minY, maxY := poly[0].Y, poly[0].Y
	for _, p := range poly[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	minY = max(minY, m.Rect.Min.Y)
	maxY = min(maxY, m.Rect.Max.Y)

	xs := make([]float64, 0, len(poly))
	for y := minY; y < maxY; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i, p := range poly {
			q := poly[(i+1)%len(poly)]
			py, qy := float64(p.Y), float64(q.Y)
			if (py <= cy) == (qy <= cy) {
				continue
			}
			xs = append(xs, float64(p.X)+(cy-py)*float64(q.X-p.X)/(qy-py))
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(int(math.Ceil(xs[i]-0.5)), m.Rect.Min.X)
			x1 := min(int(math.Ceil(xs[i+1]-0.5)), m.Rect.Max.X)
			for x := x0; x < x1; x++ {
				m.Pix[m.PixOffset(x, y)] = value
			}
		}
	}
}

// Inside сообщает, отмечен ли пиксель.
func (m *Mask) Inside(x, y int) bool {
	return m.AlphaAt(x, y).A != 0
}

// Count число отмеченных пикселей.
func (m *Mask) Count() int {
	n := 0
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		for x := m.Rect.Min.X; x < m.Rect.Max.X; x++ {
			if m.Inside(x, y) {
				n++
			}
		}
	}
	return n
}

// Points переводит индексы контура в пиксели кадра bounds.
func Points(indices []int, landmarks []entity.Landmark, bounds image.Rectangle) ([]image.Point, error) {
	pts := make([]image.Point, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(landmarks) {
			return nil, fmt.Errorf("%w: %d of %d", ErrLandmarkIndex, idx, len(landmarks))
		}
		pts[i] = landmarks[idx].Pixel(bounds.Dx(), bounds.Dy()).Add(bounds.Min)
	}
	return pts, nil
}

// Build строит маску кожи: контур лица минус глаза и губы.
func Build(landmarks []entity.Landmark, bounds image.Rectangle) (*Mask, error) {
	m := NewMask(bounds)
	for _, r := range SkinRegions() {
		pts, err := Points(r.Indices, landmarks, bounds)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", r.Name, err)
		}
		m.Fill(pts, r.Include)
	}
	return m, nil
}

// MeanColor среднее по каналам под маской. Пустая маска даёт (0,0,0).
func MeanColor(img image.Image, m *Mask) entity.RGB {
	area := img.Bounds().Intersect(m.Rect)
	var sumR, sumG, sumB float64
	n := 0

	if rgba, ok := img.(*image.RGBA); ok {
		for y := area.Min.Y; y < area.Max.Y; y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				if !m.Inside(x, y) {
					continue
				}
				i := rgba.PixOffset(x, y)
				sumR += float64(rgba.Pix[i])
				sumG += float64(rgba.Pix[i+1])
				sumB += float64(rgba.Pix[i+2])
				n++
			}
		}
	} else {
		for y := area.Min.Y; y < area.Max.Y; y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				if !m.Inside(x, y) {
					continue
				}
				r, g, b, _ := img.At(x, y).RGBA()
				sumR += float64(r >> 8)
				sumG += float64(g >> 8)
				sumB += float64(b >> 8)
				n++
			}
		}
	}

	if n == 0 {
		return entity.RGB{}
	}
	return entity.RGB{R: sumR / float64(n), G: sumG / float64(n), B: sumB / float64(n)}
}

// Sample считает цвет кожи кадра по точкам лица.
func Sample(img image.Image, landmarks []entity.Landmark) (entity.ColorSample, error) {
	m, err := Build(landmarks, img.Bounds())
	if err != nil {
		return entity.ColorSample{}, err
	}
	return entity.ColorSample{
		Color:  MeanColor(img, m),
		Pixels: m.Count(),
		Mask:   m.Alpha,
	}, nil
}

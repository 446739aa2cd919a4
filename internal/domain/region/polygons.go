// Package region строит маску кожи лица по фиксированным контурам из точек модели
// и считает средний цвет под маской.
package region

import "slices"

// Контуры замкнуты: первый индекс повторяется в конце.
var (
	faceBoundary = [...]int{
		9,
		336, 296, 334, 293, 301,
		389, 356, 454, 323, 361, 288, 397, 365, 379, 378, 400, 377,
		152,
		148, 176, 149, 150, 136, 172, 58, 132, 93, 234, 127, 162,
		71, 63, 105, 66, 107,
		9,
	}

	leftEye = [...]int{
		33,
		246, 161, 160, 159, 158, 157, 173, 133,
		155, 154, 153, 145, 144, 163, 7,
		33,
	}

	rightEye = [...]int{
		362,
		398, 384, 385, 386, 387, 388, 466, 263,
		249, 390, 373, 374, 380, 381, 382,
		362,
	}

	lips = [...]int{
		0,
		267, 269, 270, 409,
		375, 321, 405, 314, 17, 84, 181, 91, 146,
		185, 40, 39, 37,
		0,
	}
)

// Region контур из индексов точек.
// Include=true добавляет область в маску, false вырезает её.
type Region struct {
	Name    string
	Include bool
	Indices []int
}

// SkinRegions возвращает контуры в порядке заливки: лицо, затем глаза и губы.
// Каждый вызов отдаёт свои копии индексов.
func SkinRegions() []Region {
	return []Region{
		{Name: "face", Include: true, Indices: slices.Clone(faceBoundary[:])},
		{Name: "left_eye", Include: false, Indices: slices.Clone(leftEye[:])},
		{Name: "right_eye", Include: false, Indices: slices.Clone(rightEye[:])},
		{Name: "lips", Include: false, Indices: slices.Clone(lips[:])},
	}
}

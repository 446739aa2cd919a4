package entity

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLandmarkPixel(t *testing.T) {
	l := Landmark{X: 0.5, Y: 0.25, Z: -0.1}
	require.Equal(t, image.Pt(320, 120), l.Pixel(640, 480))
}

func TestLandmarkPixel_Truncates(t *testing.T) {
	l := Landmark{X: 0.999, Y: 0.0015}
	require.Equal(t, image.Pt(9, 0), l.Pixel(10, 100))
}

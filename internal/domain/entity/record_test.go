package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmptyFaceRecord_JSON(t *testing.T) {
	rec := EmptyFaceRecord(time.Unix(1700000000, 500000000))
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.JSONEq(t, `{"timestamp":1700000000.5,"blendshapes":{},"avg_rgb":[0,0,0]}`, string(data))
	require.False(t, rec.HasFace())
}

func TestNewFaceRecord_WithPose(t *testing.T) {
	det := &FaceDetection{
		Blendshapes: map[string]float64{"jawOpen": 0.3},
		Transform: []float64{
			1, 0, 0, 10,
			0, 1, 0, 20,
			0, 0, 1, -30,
			0, 0, 0, 1,
		},
	}
	rec := NewFaceRecord(time.Unix(10, 0), det, RGB{R: 200, G: 150, B: 100})

	require.True(t, rec.HasFace())
	require.Equal(t, 0.3, rec.Blendshapes["jawOpen"])
	require.Equal(t, [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, rec.RotationMatrix)
	require.Equal(t, []float64{10, 20, -30}, rec.TranslationVector)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.Contains(t, string(data), `"avg_rgb":[200,150,100]`)
}

func TestNewFaceRecord_NoTransform(t *testing.T) {
	det := &FaceDetection{Blendshapes: map[string]float64{"eyeBlinkLeft": 0.9}}
	rec := NewFaceRecord(time.Unix(10, 0), det, RGB{})

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NotContains(t, string(data), "rotation_matrix")
	require.NotContains(t, string(data), "translation_vector")
}

func TestRGB_UnmarshalRejectsWrongLength(t *testing.T) {
	var rec FaceRecord
	err := json.Unmarshal([]byte(`{"timestamp":1,"blendshapes":{},"avg_rgb":[1,2]}`), &rec)
	require.Error(t, err)
}

func TestFaceRecordTime(t *testing.T) {
	at := time.Unix(1700000000, 250000000)
	rec := EmptyFaceRecord(at)
	require.WithinDuration(t, at, rec.Time(), time.Microsecond)
}

func TestMarkersSet(t *testing.T) {
	var m Markers
	require.NoError(t, m.Set(2, 1))
	require.Equal(t, Markers{0, 1, 0}, m)
	require.Error(t, m.Set(0, 1))
	require.Error(t, m.Set(4, 1))
}

func TestFaceRecord_HasFace(t *testing.T) {
	require.False(t, EmptyFaceRecord(time.Unix(1, 0)).HasFace())

	// лицо найдено, но модель не вернула выражений
	colorOnly := NewFaceRecord(time.Unix(1, 0), &FaceDetection{}, RGB{R: 180, G: 120, B: 100})
	require.True(t, colorOnly.HasFace())

	poseOnly := EmptyFaceRecord(time.Unix(1, 0))
	poseOnly.RotationMatrix = [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	require.True(t, poseOnly.HasFace())

	withBlendshapes := NewFaceRecord(time.Unix(1, 0), &FaceDetection{Blendshapes: map[string]float64{"jawOpen": 0}}, RGB{})
	require.True(t, withBlendshapes.HasFace())
}

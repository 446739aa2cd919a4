package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"timestamp":12.5,"blendshapes":{"jawOpen":0.3},"avg_rgb":[1,2,3],"rotation_matrix":[[1,0,0],[0,1,0],[0,0,1]],"translation_vector":[0,0,-40]}` + "\n"))
	require.NoError(t, err)
	require.Equal(t, 12.5, rec.Timestamp)
	require.Equal(t, 0.3, rec.Blendshapes["jawOpen"])
	require.Equal(t, 3.0, rec.AvgRGB.B)
	require.Len(t, rec.RotationMatrix, 3)
	require.Equal(t, -40.0, rec.TranslationVector[2])
}

func TestDecodeRecord_EmptyRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"timestamp":1,"blendshapes":{},"avg_rgb":[0,0,0]}`))
	require.NoError(t, err)
	require.False(t, rec.HasFace())
	require.Nil(t, rec.RotationMatrix)
}

func TestDecodeRecord_MissingBlendshapes(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"timestamp":1,"avg_rgb":[0,0,0]}`))
	require.NoError(t, err)
	require.NotNil(t, rec.Blendshapes)
}

func TestDecodeRecord_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":      `hello`,
		"short rgb":     `{"timestamp":1,"blendshapes":{},"avg_rgb":[1,2]}`,
		"bad rotation":  `{"timestamp":1,"blendshapes":{},"avg_rgb":[0,0,0],"rotation_matrix":[[1,0],[0,1]]}`,
		"bad translate": `{"timestamp":1,"blendshapes":{},"avg_rgb":[0,0,0],"translation_vector":[1]}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(line))
			require.Error(t, err)
		})
	}

	_, err := DecodeRecord([]byte("  \r"))
	require.ErrorIs(t, err, ErrEmptyLine)
}

package pulse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"facestream/internal/domain/entity"
)

func syntheticPulse(hz, fps float64, seconds int) []entity.RGB {
	n := int(fps) * seconds
	out := make([]entity.RGB, n)
	for i := range out {
		t := float64(i) / fps
		out[i] = entity.RGB{R: 150, G: 110 + 2*math.Sin(2*math.Pi*hz*t), B: 90}
	}
	return out
}

func TestEstimateBPM_SyntheticPulse(t *testing.T) {
	bpm := EstimateBPM(syntheticPulse(1.2, 30, 10), 30)
	require.InDelta(t, 72.0, bpm, 0.5)
}

func TestEstimateBPM_TooShort(t *testing.T) {
	require.Zero(t, EstimateBPM(syntheticPulse(1.2, 30, 4), 30))
	require.Zero(t, EstimateBPM(nil, 30))
	require.Zero(t, EstimateBPM(syntheticPulse(1.2, 30, 10), 0))
}

func TestBandPass_KeepsShortSignal(t *testing.T) {
	in := []float64{1, 2, 3}
	require.Equal(t, in, BandPass(in, 30, 0.8, 2.5))
}

func TestBandPass_AboveNyquist(t *testing.T) {
	in := make([]float64, 10)
	require.Equal(t, in, BandPass(in, 4, 0.8, 2.5))
}

func TestBandPass_AttenuatesDC(t *testing.T) {
	in := make([]float64, 600)
	for i := range in {
		in[i] = 5
	}
	out := BandPass(in, 30, 0.8, 2.5)
	require.InDelta(t, 0, out[len(out)-1], 1e-3)
}

func TestRobustStd(t *testing.T) {
	require.Zero(t, robustStd(nil))
	require.InDelta(t, 1.4826, robustStd([]float64{1, 2, 3, 4, 5}), 1e-9)
}

func TestFrameRate(t *testing.T) {
	recs := []*entity.FaceRecord{{Timestamp: 10}, {Timestamp: 10.5}, {Timestamp: 11}}
	require.InDelta(t, 2.0, FrameRate(recs), 1e-9)
	require.Zero(t, FrameRate(recs[:1]))
}

func TestResample_Interpolates(t *testing.T) {
	times := []float64{0, 1, 3}
	samples := []entity.RGB{{R: 0}, {R: 10}, {R: 30, G: 6}}

	out := Resample(times, samples, 2)
	require.Len(t, out, 7)
	require.InDelta(t, 5, out[1].R, 1e-9)
	require.InDelta(t, 10, out[2].R, 1e-9)
	require.InDelta(t, 20, out[4].R, 1e-9)
	require.InDelta(t, 3, out[4].G, 1e-9)
	require.InDelta(t, 30, out[6].R, 1e-9)

	require.Nil(t, Resample(times[:1], samples[:1], 2))
	require.Nil(t, Resample([]float64{1, 1}, samples[:2], 2))
}

// кадры без лица выпадают из ряда, но частота и пульс остаются верными
func TestFromRecords_WithDroppedFaces(t *testing.T) {
	const fps = 30.0
	var recs []*entity.FaceRecord
	for i := 0; i < 300; i++ {
		ts := float64(i) / fps
		if i%3 == 2 {
			recs = append(recs, &entity.FaceRecord{Timestamp: 500 + ts, Blendshapes: map[string]float64{}})
			continue
		}
		recs = append(recs, &entity.FaceRecord{
			Timestamp:   500 + ts,
			AvgRGB:      entity.RGB{R: 150, G: 110 + 2*math.Sin(2*math.Pi*1.2*ts), B: 90},
			Blendshapes: map[string]float64{"jawOpen": 0},
		})
	}

	require.InDelta(t, 72.0, FromRecords(recs), 1.0)
	require.Zero(t, FromRecords(recs[:60]))
	require.Zero(t, FromRecords(nil))
}

// Package pulse оценивает пульс по ряду средних цветов кожи (метод POS).
package pulse

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"facestream/internal/domain/entity"
)

const (
	// MinWindow минимальная длина ряда в секундах.
	MinWindow = 5.0

	bandLow   = 0.8 // Гц, полоса фильтра
	bandHigh  = 2.5
	peakLow   = 0.7 // Гц, где ищем пик спектра
	peakHigh  = 4.0
	alphaMin  = 0.3
	alphaMax  = 3.0
	madToStd  = 1.4826
	minStdDev = 1e-6
)

// EstimateBPM возвращает пульс в ударах в минуту с точностью 0.1.
// Ноль, если ряд короче MinWindow секунд.
func EstimateBPM(samples []entity.RGB, fps float64) float64 {
	n := len(samples)
	if fps <= 0 || n < 3 || float64(n) < fps*MinWindow {
		return 0
	}

	r := make([]float64, n)
	g := make([]float64, n)
	b := make([]float64, n)
	for i, s := range samples {
		r[i], g[i], b[i] = s.R, s.G, s.B
	}
	center(r)
	center(g)
	center(b)

	signal := Project(r, g, b)
	signal = BandPass(signal, fps, bandLow, bandHigh)
	center(signal)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, signal)

	var peak, best float64
	for i, c := range coeffs {
		freq := fft.Freq(i) * fps
		if freq < peakLow || freq > peakHigh {
			continue
		}
		if mag := cmplx.Abs(c); mag > best {
			best = mag
			peak = freq
		}
	}
	return math.Round(peak*60*10) / 10
}

// Project строит сигнал POS из центрированных каналов.
func Project(r, g, b []float64) []float64 {
	x := make([]float64, len(r))
	y := make([]float64, len(r))
	for i := range r {
		x[i] = 3*r[i] - 2*g[i]
		y[i] = 1.5*r[i] + g[i] - 1.5*b[i]
	}

	sy := robustStd(y)
	if sy == 0 {
		sy = minStdDev
	}
	alpha := math.Min(math.Max(robustStd(x)/sy, alphaMin), alphaMax)

	s := make([]float64, len(x))
	for i := range x {
		s[i] = x[i] - alpha*y[i]
	}
	return s
}

// BandPass полосовой биквад второго порядка между low и high Гц.
// Сигнал возвращается без изменений, если полоса выше частоты Найквиста.
func BandPass(signal []float64, fs, low, high float64) []float64 {
	nyq := fs / 2
	if low >= nyq || high >= nyq || len(signal) < 5 {
		return signal
	}

	f0 := math.Sqrt(low * high)
	q := f0 / (high - low)
	w0 := 2 * math.Pi * f0 / fs
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	b0 := alpha / a0
	b2 := -alpha / a0
	a1 := -2 * math.Cos(w0) / a0
	a2 := (1 - alpha) / a0

	out := make([]float64, len(signal))
	var x1, x2, y1, y2 float64
	for i, x := range signal {
		y := b0*x + b2*x2 - a1*y1 - a2*y2
		out[i] = y
		x2, x1 = x1, x
		y2, y1 = y1, y
	}
	return out
}

// robustStd оценка стандартного отклонения через медиану абсолютных отклонений.
func robustStd(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	dev := make([]float64, len(v))
	for i, x := range v {
		dev[i] = math.Abs(x - median)
	}
	sort.Float64s(dev)
	return madToStd * stat.Quantile(0.5, stat.Empirical, dev, nil)
}

func center(v []float64) {
	m := stat.Mean(v, nil)
	for i := range v {
		v[i] -= m
	}
}

// FromRecords пульс по ряду записей стримера. Частота считается по всем записям,
// цвета кадров с лицом переносятся на равномерную сетку, пропуски интерполируются.
func FromRecords(recs []*entity.FaceRecord) float64 {
	fps := FrameRate(recs)
	if fps <= 0 {
		return 0
	}

	faces := make([]*entity.FaceRecord, 0, len(recs))
	for _, r := range recs {
		if r != nil && r.HasFace() {
			faces = append(faces, r)
		}
	}
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].Timestamp < faces[j].Timestamp })

	times := make([]float64, len(faces))
	colors := make([]entity.RGB, len(faces))
	for i, r := range faces {
		times[i] = r.Timestamp
		colors[i] = r.AvgRGB
	}
	return EstimateBPM(Resample(times, colors, fps), fps)
}

// Resample линейно интерполирует samples на сетку с шагом 1/fps
// от первой до последней метки. times должны идти по возрастанию.
func Resample(times []float64, samples []entity.RGB, fps float64) []entity.RGB {
	if len(times) < 2 || len(times) != len(samples) || fps <= 0 {
		return nil
	}
	span := times[len(times)-1] - times[0]
	if span <= 0 {
		return nil
	}

	// 1e-9 гасит ошибку округления, когда span*fps почти целое
	out := make([]entity.RGB, int(math.Floor(span*fps+1e-9))+1)
	j := 0
	for i := range out {
		t := times[0] + float64(i)/fps
		for j < len(times)-2 && times[j+1] < t {
			j++
		}
		t0, t1 := times[j], times[j+1]
		if t1 <= t0 {
			out[i] = samples[j]
			continue
		}
		w := math.Min(math.Max((t-t0)/(t1-t0), 0), 1)
		a, b := samples[j], samples[j+1]
		out[i] = entity.RGB{
			R: a.R + w*(b.R-a.R),
			G: a.G + w*(b.G-a.G),
			B: a.B + w*(b.B-a.B),
		}
	}
	return out
}

// FrameRate частота записей по их меткам времени.
func FrameRate(recs []*entity.FaceRecord) float64 {
	if len(recs) < 2 {
		return 0
	}
	span := recs[len(recs)-1].Timestamp - recs[0].Timestamp
	if span <= 0 {
		return 0
	}
	return float64(len(recs)-1) / span
}

package vision

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"facestream/internal/domain/port"
)

func encodeJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestSplitJPEG(t *testing.T) {
	a := encodeJPEG(t, 4, 4, color.White)
	b := encodeJPEG(t, 6, 2, color.Black)
	stream := append([]byte("junk"), a...)
	stream = append(stream, 0x00, 0x01)
	stream = append(stream, b...)

	sc := bufio.NewScanner(bytes.NewReader(stream))
	sc.Split(SplitJPEG)

	var frames [][]byte
	for sc.Scan() {
		frames = append(frames, append([]byte(nil), sc.Bytes()...))
	}
	require.NoError(t, sc.Err())
	require.Len(t, frames, 2)
	require.Equal(t, a, frames[0])
	require.Equal(t, b, frames[1])
}

func TestSplitJPEG_TruncatedTail(t *testing.T) {
	a := encodeJPEG(t, 4, 4, color.White)
	stream := append(append([]byte(nil), a...), a[:len(a)/2]...)

	sc := bufio.NewScanner(bytes.NewReader(stream))
	sc.Split(SplitJPEG)
	n := 0
	for sc.Scan() {
		n++
	}
	require.NoError(t, sc.Err())
	require.Equal(t, 1, n)
}

func TestMJPEGSource_ReadUntilEOF(t *testing.T) {
	stream := append(encodeJPEG(t, 8, 4, color.White), encodeJPEG(t, 8, 4, color.White)...)
	src := NewMJPEGSource(bytes.NewReader(stream), nil)
	ctx := context.Background()

	f0, err := src.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), f0.Index)
	w, h := f0.Size()
	require.Equal(t, 8, w)
	require.Equal(t, 4, h)

	f1, err := src.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), f1.Index)

	_, err = src.Read(ctx)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, src.Close())
}

func TestMJPEGSource_CorruptFrameIsRetryable(t *testing.T) {
	src := NewMJPEGSource(bytes.NewReader([]byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}), nil)
	_, err := src.Read(context.Background())
	require.ErrorIs(t, err, port.ErrFrameUnavailable)
}

func TestDownscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	out := Downscale(img, 640)
	require.Equal(t, image.Rect(0, 0, 640, 360), out.Bounds())

	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	require.Same(t, small, Downscale(small, 640))
	require.Same(t, img, Downscale(img, 0))
}

func TestRegionSampler_ShortLandmarks(t *testing.T) {
	_, err := RegionSampler{}.Sample(image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
	require.Error(t, err)
}

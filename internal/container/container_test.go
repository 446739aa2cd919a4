package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"facestream/config"
	"facestream/internal/domain/entity"
	"facestream/internal/infrastructure/transport"
	"facestream/internal/infrastructure/vision"
)

func TestNewSampler(t *testing.T) {
	s, err := NewSampler("go")
	require.NoError(t, err)
	require.IsType(t, vision.RegionSampler{}, s)

	_, err = NewSampler("opencv")
	if vision.OpenCVAvailable {
		require.NoError(t, err)
	} else {
		require.ErrorContains(t, err, "-tags gocv")
	}

	_, err = NewSampler("magic")
	require.ErrorContains(t, err, "unknown sampler")
}

func TestDevicePath(t *testing.T) {
	require.Equal(t, "/dev/video0", devicePath("0"))
	require.Equal(t, "/dev/video2", devicePath("2"))
	require.Equal(t, "/dev/video9", devicePath("/dev/video9"))
	require.Equal(t, "clip.mp4", devicePath("clip.mp4"))
}

func TestOpenSource_Unknown(t *testing.T) {
	_, err := OpenSource(&config.Config{CameraSource: "kinect"})
	require.ErrorContains(t, err, "unknown camera source")
}

func TestNewReceive_AcceptsRecords(t *testing.T) {
	cfg := &config.Config{
		Host:           "127.0.0.1",
		Port:           0,
		BufferSize:     10,
		CSVPath:        filepath.Join(t.TempDir(), "summary.csv"),
		NotifyInterval: time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := NewReceive(ctx, cfg)
	require.NoError(t, err)
	defer r.Close()
	require.Nil(t, r.Bot)

	go r.Listener.Serve(ctx)

	sink, err := transport.DialTCPSink(ctx, r.Listener.Addr().String())
	require.NoError(t, err)
	defer sink.Close()

	det := &entity.FaceDetection{Blendshapes: map[string]float64{"jawOpen": 0.5}}
	rec := entity.NewFaceRecord(time.Unix(1700000000, 0), det, entity.RGB{R: 200, G: 150, B: 120})
	require.NoError(t, sink.Send(ctx, rec))

	require.Eventually(t, func() bool {
		_, ok := r.Service.Latest()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	n, err := r.Service.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := r.Repository.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, rec.Timestamp, stored[0].Record.Timestamp)

	s, err := r.Summary.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, s.Samples)
	require.InDelta(t, 200, s.AvgRGB.R, 1e-9)
	require.FileExists(t, cfg.CSVPath)
}

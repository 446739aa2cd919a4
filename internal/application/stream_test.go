package app

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"facestream/internal/domain/entity"
)

type fakeSource struct {
	results []error
	frames  int
	closed  bool
}

// Read отдаёт ошибки из results по очереди, nil означает кадр, конец списка io.EOF.
func (f *fakeSource) Read(ctx context.Context) (*entity.Frame, error) {
	if len(f.results) == 0 {
		return nil, io.EOF
	}
	err := f.results[0]
	f.results = f.results[1:]
	if err != nil {
		return nil, err
	}
	f.frames++
	return &entity.Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, 8, 8)),
		CapturedAt: time.Unix(int64(100+f.frames), 0),
		Index:      uint64(f.frames),
	}, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type fakeLandmarker struct {
	detections []*entity.FaceDetection
	err        error
	calls      int
}

func (f *fakeLandmarker) Detect(ctx context.Context, frame *entity.Frame) (*entity.FaceDetection, error) {
	if f.err != nil {
		return nil, f.err
	}
	var det *entity.FaceDetection
	if f.calls < len(f.detections) {
		det = f.detections[f.calls]
	}
	f.calls++
	return det, nil
}

func (f *fakeLandmarker) Close() error { return nil }

type fakeSampler struct {
	color entity.RGB
}

func (f fakeSampler) Sample(img image.Image, landmarks []entity.Landmark) (entity.ColorSample, error) {
	return entity.ColorSample{Color: f.color, Pixels: 10}, nil
}

type fakeSink struct {
	records []*entity.FaceRecord
	err     error
}

func (f *fakeSink) Send(ctx context.Context, rec *entity.FaceRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSink) Close() error { return nil }

type countingObserver struct {
	captured, failed, faces, noFaces, sent, processed int
}

func (o *countingObserver) FrameCaptured() { o.captured++ }
func (o *countingObserver) CaptureFailed() { o.failed++ }
func (o *countingObserver) FaceDetected(found bool) {
	if found {
		o.faces++
	} else {
		o.noFaces++
	}
}
func (o *countingObserver) RecordSent() { o.sent++ }
func (o *countingObserver) FrameProcessed(float64, float64) { o.processed++ }

func face(blink float64) *entity.FaceDetection {
	return &entity.FaceDetection{
		Landmarks:   []entity.Landmark{{X: 0.5, Y: 0.5}},
		Blendshapes: map[string]float64{"eyeBlinkLeft": blink},
	}
}

func TestStreamService_SendsRecordPerFrame(t *testing.T) {
	source := &fakeSource{results: []error{nil, nil, nil}}
	landmarker := &fakeLandmarker{detections: []*entity.FaceDetection{face(0.1), nil, face(0.3)}}
	sink := &fakeSink{}
	obs := &countingObserver{}

	svc := NewStreamService(source, landmarker, fakeSampler{color: entity.RGB{R: 1, G: 2, B: 3}}, sink, StreamOptions{Observer: obs})
	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, sink.records, 3)
	require.Equal(t, 0.1, sink.records[0].Blendshapes["eyeBlinkLeft"])
	require.Equal(t, entity.RGB{R: 1, G: 2, B: 3}, sink.records[0].AvgRGB)
	require.False(t, sink.records[1].HasFace())
	require.Equal(t, entity.RGB{}, sink.records[1].AvgRGB)
	require.Equal(t, float64(102), sink.records[1].Timestamp)

	require.Equal(t, 3, obs.captured)
	require.Equal(t, 2, obs.faces)
	require.Equal(t, 1, obs.noFaces)
	require.Equal(t, 3, obs.sent)
}

func TestStreamService_SkipEmpty(t *testing.T) {
	source := &fakeSource{results: []error{nil, nil}}
	landmarker := &fakeLandmarker{detections: []*entity.FaceDetection{nil, face(0.5)}}
	sink := &fakeSink{}

	svc := NewStreamService(source, landmarker, fakeSampler{}, sink, StreamOptions{SkipEmpty: true})
	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, sink.records, 1)
	require.True(t, sink.records[0].HasFace())
}

func TestStreamService_RetriesCaptureFailures(t *testing.T) {
	glitch := errors.New("camera glitch")
	source := &fakeSource{results: []error{glitch, glitch, nil}}
	sink := &fakeSink{}
	obs := &countingObserver{}

	svc := NewStreamService(source, &fakeLandmarker{}, fakeSampler{}, sink, StreamOptions{
		RetryDelay: time.Millisecond,
		Observer:   obs,
	})
	require.NoError(t, svc.Run(context.Background()))

	require.Equal(t, 2, obs.failed)
	require.Len(t, sink.records, 1)
}

func TestStreamService_SinkErrorStops(t *testing.T) {
	source := &fakeSource{results: []error{nil, nil}}
	sink := &fakeSink{err: errors.New("broken pipe")}

	svc := NewStreamService(source, &fakeLandmarker{}, fakeSampler{}, sink, StreamOptions{})
	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "broken pipe")
	require.Equal(t, 1, source.frames)
}

func TestStreamService_ModelErrorStops(t *testing.T) {
	source := &fakeSource{results: []error{nil}}
	landmarker := &fakeLandmarker{err: errors.New("worker died")}

	svc := NewStreamService(source, landmarker, fakeSampler{}, &fakeSink{}, StreamOptions{})
	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "detect face")
}

func TestStreamService_CancelledContext(t *testing.T) {
	source := &fakeSource{results: []error{nil, nil}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewStreamService(source, &fakeLandmarker{}, fakeSampler{}, &fakeSink{}, StreamOptions{})
	require.NoError(t, svc.Run(ctx))
	require.Zero(t, source.frames)
}

type stopPreview struct{ shown int }

func (p *stopPreview) Show(frame *entity.Frame, sample entity.ColorSample) bool {
	p.shown++
	return false
}

func (p *stopPreview) Close() error { return nil }

func TestStreamService_PreviewStops(t *testing.T) {
	source := &fakeSource{results: []error{nil, nil, nil}}
	landmarker := &fakeLandmarker{detections: []*entity.FaceDetection{nil, face(0.2), face(0.2)}}
	preview := &stopPreview{}
	sink := &fakeSink{}

	svc := NewStreamService(source, landmarker, fakeSampler{}, sink, StreamOptions{Preview: preview})
	require.NoError(t, svc.Run(context.Background()))

	require.Equal(t, 1, preview.shown)
	require.Len(t, sink.records, 2)
}

func TestStreamService_OnRecord(t *testing.T) {
	source := &fakeSource{results: []error{nil, nil}}
	var seen int
	svc := NewStreamService(source, &fakeLandmarker{}, fakeSampler{}, &fakeSink{}, StreamOptions{
		OnRecord: func(*entity.FaceRecord) { seen++ },
	})
	require.NoError(t, svc.Run(context.Background()))
	require.Equal(t, 2, seen)
}

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"facestream/internal/domain/entity"
)

func TestMetrics_Observers(t *testing.T) {
	m := New()
	m.FrameCaptured()
	m.FrameCaptured()
	m.CaptureFailed()
	m.FaceDetected(true)
	m.FaceDetected(false)
	m.RecordSent()
	m.FrameProcessed(29.5, 0.034)
	m.RecordReceived()
	m.RecordRejected()
	m.RecordsPersisted(7)
	m.PersistFailed()

	require.Equal(t, uint64(2), m.FramesCaptured.Load())
	require.Equal(t, uint64(1), m.CaptureErrors.Load())
	require.Equal(t, uint64(1), m.FacesDetected.Load())
	require.Equal(t, uint64(1), m.FramesNoFace.Load())
	require.Equal(t, uint64(7), m.PersistedRecords.Load())
	require.Equal(t, 29.5, m.FPS())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordSent()
	require.NoError(t, m.WriteSummary(context.Background(), entity.Summary{Samples: 30, HeartRate: 72.5}))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	require.Contains(t, text, "facestream_records_sent_total 1")
	require.Contains(t, text, "facestream_heart_rate_bpm 72.5")
	require.Contains(t, text, "facestream_summary_samples 30")
}

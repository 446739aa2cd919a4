package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"facestream/internal/domain/entity"
)

type collectingHandler struct {
	mu        sync.Mutex
	connected []string
	records   []*entity.FaceRecord
	rejected  int
	done      chan struct{}
}

func newCollectingHandler() *collectingHandler {
	return &collectingHandler{done: make(chan struct{}, 4)}
}

func (h *collectingHandler) Connected(remote string) {
	h.mu.Lock()
	h.connected = append(h.connected, remote)
	h.mu.Unlock()
}

func (h *collectingHandler) Ingest(ctx context.Context, rec *entity.FaceRecord) {
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
}

func (h *collectingHandler) Rejected(remote string, err error) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
}

func (h *collectingHandler) Disconnected(remote string, err error) {
	h.done <- struct{}{}
}

func TestTCPSink_WritesOneLinePerRecord(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	lines := make(chan string, 2)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	ctx := context.Background()
	sink, err := DialTCPSink(ctx, ln.Addr().String())
	require.NoError(t, err)

	require.NoError(t, sink.Send(ctx, entity.EmptyFaceRecord(time.Unix(5, 0))))
	require.NoError(t, sink.Send(ctx, &entity.FaceRecord{
		Timestamp:   6,
		Blendshapes: map[string]float64{"jawOpen": 0.5},
		AvgRGB:      entity.RGB{R: 10, G: 20, B: 30},
	}))
	require.NoError(t, sink.Close())

	first := <-lines
	require.JSONEq(t, `{"timestamp":5,"blendshapes":{},"avg_rgb":[0,0,0]}`, first)
	second := <-lines
	rec, err := DecodeRecord([]byte(second))
	require.NoError(t, err)
	require.Equal(t, entity.RGB{R: 10, G: 20, B: 30}, rec.AvgRGB)
}

func TestDialTCPSink_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = DialTCPSink(context.Background(), addr)
	require.Error(t, err)
}

func TestListener_ReadsRecordsAndSkipsMalformed(t *testing.T) {
	h := newCollectingHandler()
	l, err := Listen("127.0.0.1:0", h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- l.Serve(ctx) }()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte(
		`{"timestamp":1,"blendshapes":{},"avg_rgb":[0,0,0]}` + "\n" +
			"garbage\n\n" +
			`{"timestamp":2,"blendshapes":{"jawOpen":0.2},"avg_rgb":[1,2,3]}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not closed")
	}

	h.mu.Lock()
	require.Len(t, h.connected, 1)
	require.Len(t, h.records, 2)
	require.Equal(t, 2.0, h.records[1].Timestamp)
	require.Equal(t, 1, h.rejected)
	h.mu.Unlock()

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestListener_AcceptsNextStreamer(t *testing.T) {
	h := newCollectingHandler()
	l, err := Listen("127.0.0.1:0", h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Serve(ctx)

	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)
		_, err = conn.Write([]byte(`{"timestamp":1,"blendshapes":{},"avg_rgb":[0,0,0]}` + "\n"))
		require.NoError(t, err)
		conn.Close()
		<-h.done
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.connected, 2)
	require.Len(t, h.records, 2)
}

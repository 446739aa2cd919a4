package vision

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"strings"
	"sync"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
)

const (
	// DefaultJPEGQuality качество JPEG для модели.
	DefaultJPEGQuality = 90

	maxResponseSize = 16 << 20
)

// WorkerConfig параметры процесса модели.
type WorkerConfig struct {
	Python      string
	Script      string
	MaxSide     int
	JPEGQuality int
}

// WorkerLandmarker отдаёт кадры процессу MediaPipe и читает точки лица.
// Протокол: [uint32 BE длина][JPEG] в stdin, [uint32 BE длина][JSON] из fd 3.
type WorkerLandmarker struct {
	mu      sync.Mutex
	cmd     *safeCommand
	stdin   io.WriteCloser
	data    io.ReadCloser
	maxSide int
	quality int
}

var _ port.FaceLandmarker = (*WorkerLandmarker)(nil)

// StartWorkerLandmarker запускает процесс модели.
func StartWorkerLandmarker(cfg WorkerConfig) (*WorkerLandmarker, error) {
	py := newSafeCommand(cfg.Python, "-u", cfg.Script)

	// отдельный канал fd 3 для данных, stdout остаётся под print()
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create data pipe: %w", err)
	}
	py.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("start landmarker worker: %w", err)
	}
	w.Close()

	return &WorkerLandmarker{
		cmd:     py,
		stdin:   stdin,
		data:    r,
		maxSide: cfg.MaxSide,
		quality: cfg.JPEGQuality,
	}, nil
}

// Detect отправляет кадр модели. Нет лица: nil, nil.
func (w *WorkerLandmarker) Detect(ctx context.Context, frame *entity.Frame) (*entity.FaceDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quality := w.quality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Downscale(frame.Image, w.maxSide), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	w.mu.Lock()
	resp, err := w.communicate(buf.Bytes())
	w.mu.Unlock()
	if err != nil {
		if logs := strings.TrimSpace(w.cmd.logs()); logs != "" {
			return nil, fmt.Errorf("landmarker worker: %w\n%s", err, logs)
		}
		return nil, fmt.Errorf("landmarker worker: %w", err)
	}
	return parseWorkerResponse(resp)
}

func (w *WorkerLandmarker) communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.data, header); err != nil {
		// тут оказываемся, если процесс упал на импорте
		return nil, err
	}
	n := binary.BigEndian.Uint32(header)
	if n > maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(w.data, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Close закрывает stdin, процесс выходит сам.
func (w *WorkerLandmarker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.stdin.Close()
	w.data.Close()
	if w.cmd != nil {
		if werr := w.cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

type workerFace struct {
	Landmarks   [][]float64        `json:"landmarks"`
	Blendshapes map[string]float64 `json:"blendshapes"`
	Transform   []float64          `json:"transform"`
}

type workerResponse struct {
	Faces []workerFace `json:"faces"`
	Error string       `json:"error"`
}

func parseWorkerResponse(body []byte) (*entity.FaceDetection, error) {
	var resp workerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode worker response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("python worker error: %s", resp.Error)
	}
	if len(resp.Faces) == 0 {
		return nil, nil
	}

	face := resp.Faces[0]
	if len(face.Landmarks) == 0 {
		return nil, nil
	}
	if len(face.Transform) != 0 && len(face.Transform) != 16 {
		return nil, fmt.Errorf("transform has %d values, want 16", len(face.Transform))
	}

	det := &entity.FaceDetection{
		Landmarks:   make([]entity.Landmark, len(face.Landmarks)),
		Blendshapes: face.Blendshapes,
		Transform:   face.Transform,
	}
	for i, p := range face.Landmarks {
		if len(p) < 2 {
			return nil, fmt.Errorf("landmark %d has %d coordinates", i, len(p))
		}
		det.Landmarks[i] = entity.Landmark{X: p[0], Y: p[1]}
		if len(p) > 2 {
			det.Landmarks[i].Z = p[2]
		}
	}
	if det.Blendshapes == nil {
		det.Blendshapes = make(map[string]float64)
	}
	return det, nil
}

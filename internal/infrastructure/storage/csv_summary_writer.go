package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
)

const csvTimeLayout = "2006-01-02 15:04:05"

var csvBaseColumns = []string{"time", "marker1", "marker2", "marker3", "samples", "r", "g", "b", "heart_rate_bpm"}

// CSVSummaryWriter дописывает сводки в CSV-файл.
// Колонки выражений фиксируются первой сводкой с лицом или заголовком существующего файла.
type CSVSummaryWriter struct {
	mu          sync.Mutex
	path        string
	blendshapes []string
}

// NewCSVSummaryWriter открывает файл path. Если в файле уже есть заголовок, колонки берутся из него.
func NewCSVSummaryWriter(path string) (*CSVSummaryWriter, error) {
	w := &CSVSummaryWriter{path: path}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return w, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < len(csvBaseColumns) || !slices.Equal(header[:len(csvBaseColumns)], csvBaseColumns) {
		return nil, fmt.Errorf("%s: unexpected csv header", path)
	}
	w.blendshapes = slices.Clone(header[len(csvBaseColumns):])
	return w, nil
}

// WriteSummary дописывает строку. Пустые сводки до первого лица пропускаются.
func (w *CSVSummaryWriter) WriteSummary(ctx context.Context, s entity.Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	writeHeader := false
	if w.blendshapes == nil {
		if len(s.Blendshapes) == 0 {
			return nil
		}
		w.blendshapes = make([]string, 0, len(s.Blendshapes))
		for name := range s.Blendshapes {
			w.blendshapes = append(w.blendshapes, name)
		}
		slices.Sort(w.blendshapes)
		writeHeader = true
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(append(slices.Clone(csvBaseColumns), w.blendshapes...)); err != nil {
			return err
		}
	}
	if err := cw.Write(w.row(s)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (w *CSVSummaryWriter) row(s entity.Summary) []string {
	row := []string{
		s.At.Format(csvTimeLayout),
		strconv.Itoa(s.Markers[0]),
		strconv.Itoa(s.Markers[1]),
		strconv.Itoa(s.Markers[2]),
		strconv.Itoa(s.Samples),
		formatFloat(s.AvgRGB.R),
		formatFloat(s.AvgRGB.G),
		formatFloat(s.AvgRGB.B),
		formatFloat(s.HeartRate),
	}
	for _, name := range w.blendshapes {
		v, ok := s.Blendshapes[name]
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, formatFloat(v))
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

var _ port.SummaryWriter = (*CSVSummaryWriter)(nil)

package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"facestream/internal/domain/entity"
)

var (
	// ErrEmptyLine пустая строка в потоке.
	ErrEmptyLine = errors.New("empty line")
	// ErrBadPose поза не 3x3 + 3.
	ErrBadPose = errors.New("malformed head pose")
)

// DecodeRecord разбирает одну строку потока в запись.
func DecodeRecord(line []byte) (*entity.FaceRecord, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, ErrEmptyLine
	}

	var rec entity.FaceRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.Blendshapes == nil {
		rec.Blendshapes = make(map[string]float64)
	}

	if rec.RotationMatrix != nil {
		if len(rec.RotationMatrix) != 3 {
			return nil, ErrBadPose
		}
		for _, row := range rec.RotationMatrix {
			if len(row) != 3 {
				return nil, ErrBadPose
			}
		}
	}
	if rec.TranslationVector != nil && len(rec.TranslationVector) != 3 {
		return nil, ErrBadPose
	}
	return &rec, nil
}

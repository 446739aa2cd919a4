package entity

import (
	"math"
	"time"
)

// FaceRecord запись одного кадра, которая уходит слушателю строкой JSON.
type FaceRecord struct {
	Timestamp         float64            `json:"timestamp"` // секунды Unix
	Blendshapes       map[string]float64 `json:"blendshapes"`
	AvgRGB            RGB                `json:"avg_rgb"`
	RotationMatrix    [][]float64        `json:"rotation_matrix,omitempty"`
	TranslationVector []float64          `json:"translation_vector,omitempty"`
}

// NewFaceRecord собирает запись по найденному лицу и цвету кожи.
func NewFaceRecord(at time.Time, det *FaceDetection, color RGB) *FaceRecord {
	rec := EmptyFaceRecord(at)
	rec.AvgRGB = color
	if det == nil {
		return rec
	}
	for name, score := range det.Blendshapes {
		rec.Blendshapes[name] = score
	}
	if pose, ok := det.HeadPose(); ok {
		rec.RotationMatrix = make([][]float64, 3)
		for r := range pose.Rotation {
			rec.RotationMatrix[r] = []float64{pose.Rotation[r][0], pose.Rotation[r][1], pose.Rotation[r][2]}
		}
		rec.TranslationVector = []float64{pose.Translation[0], pose.Translation[1], pose.Translation[2]}
	}
	return rec
}

// EmptyFaceRecord запись для кадра без лица: пустые выражения и нулевой цвет.
func EmptyFaceRecord(at time.Time) *FaceRecord {
	return &FaceRecord{
		Timestamp:   UnixSeconds(at),
		Blendshapes: make(map[string]float64),
	}
}

// HasFace сообщает, было ли лицо на кадре. Запись без лица целиком пустая:
// нет выражений, нет позы и нулевой цвет.
func (r *FaceRecord) HasFace() bool {
	return len(r.Blendshapes) > 0 || len(r.RotationMatrix) > 0 || r.AvgRGB != (RGB{})
}

// Time возвращает метку записи как time.Time.
func (r *FaceRecord) Time() time.Time {
	sec, frac := math.Modf(r.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// UnixSeconds переводит время в дробные секунды Unix.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Observation запись, принятая слушателем.
type Observation struct {
	SessionID  string      `json:"session_id"`
	ReceivedAt time.Time   `json:"received_at"`
	Record     *FaceRecord `json:"record"`
}

package entity

import "time"

// Summary сводка по буферу записей за один интервал.
type Summary struct {
	At          time.Time          `json:"at"`
	Markers     Markers            `json:"markers"`
	Samples     int                `json:"samples"`
	AvgRGB      RGB                `json:"avg_rgb"`
	Blendshapes map[string]float64 `json:"blendshapes"`
	HeartRate   float64            `json:"heart_rate_bpm"` // 0, если данных мало
}

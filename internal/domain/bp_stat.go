package domain

import (
	"time"

	"bptrack/internal/bpcategory"
)

// Reading sources
const (
	SourceManual = "manual"
	SourceBLE    = "ble"
)

// BPStat one persisted blood-pressure reading (table bp_stats).
// Category is computed once at creation and never rewritten.
type BPStat struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user"`
	Systolic  int                 `json:"systolic"`
	Diastolic int                 `json:"diastolic"`
	HeartRate int                 `json:"heartRate"`
	Category  bpcategory.Category `json:"category"`
	Source    string              `json:"source"`
	DeviceID  string              `json:"deviceId,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// BPStatFilter optional list filters; zero values mean "no filter".
type BPStatFilter struct {
	Categories []bpcategory.Category
	From       time.Time
	To         time.Time
}

// BPStatSummary per-user aggregates
type BPStatSummary struct {
	Total        int                         `json:"total"`
	ByCategory   map[bpcategory.Category]int `json:"byCategory"`
	AvgSystolic  float64                     `json:"avgSystolic"`
	AvgDiastolic float64                     `json:"avgDiastolic"`
	AvgHeartRate float64                     `json:"avgHeartRate"`
	Latest       *BPStat                     `json:"latest,omitempty"`
}

package models

import "time"

// SensorReading one sampling event from the medicine box.
// Every field is optional; a missing or mistyped field decodes as nil.
type SensorReading struct {
	Temperature *float64   `json:"temperature" bson:"temperature,omitempty"`
	Humidity    *float64   `json:"humidity" bson:"humidity,omitempty"`
	LDRValue    *float64   `json:"ldr_value" bson:"ldr_value,omitempty"`
	Timestamp   *time.Time `json:"timestamp" bson:"timestamp,omitempty"`
}

// ProjectedRow one row of the derived sensor history table
type ProjectedRow struct {
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	LDRValue    *float64   `json:"ldr_value"`
	JumlahObat  int        `json:"jumlah_obat"` // dose count
	Timestamp   *time.Time `json:"timestamp"`
}

// HistoryStatus tells "no data" apart from "fetch broke"
type HistoryStatus string

const (
	HistoryOK                HistoryStatus = "ok"
	HistoryEmpty             HistoryStatus = "empty"
	HistorySourceUnavailable HistoryStatus = "source_unavailable"
)

// HistoryResult outcome of one projection
type HistoryResult struct {
	Status HistoryStatus  `json:"status"`
	Rows   []ProjectedRow `json:"rows"`
	Reason string         `json:"reason,omitempty"`
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// Time returns a pointer to t
func Time(t time.Time) *time.Time {
	return &t
}

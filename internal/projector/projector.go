package projector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wisefido-medbox/internal/models"

	"go.uber.org/zap"
)

const (
	// DefaultLimit readings considered when the caller passes a non-positive limit
	DefaultLimit = 50
	// MaxLimit largest window the API accepts
	MaxLimit = 10000
	// MaxOffsetHours bound on the display shift in either direction
	MaxOffsetHours = 14.0
	// DoseThreshold ldr_value at or above which the box lid is considered open
	DoseThreshold = 1000.0
	// TimestampField sort field requested from the source
	TimestampField = "timestamp"
)

// SortDirection matches MongoDB sort values
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// Ordering how the newest-first batch is turned into chronological order
type Ordering string

const (
	// OrderReverse trusts the source sort and only reverses the batch
	OrderReverse Ordering = "reverse"
	// OrderTimestamp reverses, then stable-sorts by timestamp value
	OrderTimestamp Ordering = "timestamp"
)

// ParseOrdering falls back to OrderReverse for unknown values
func ParseOrdering(s string) Ordering {
	if Ordering(s) == OrderTimestamp {
		return OrderTimestamp
	}
	return OrderReverse
}

// SensorSource external read-only store of sensor documents
type SensorSource interface {
	Query(ctx context.Context, sortField string, direction SortDirection, limit int64) ([]models.SensorReading, error)
}

// Projector turns the latest readings into the sensor history table
type Projector struct {
	source   SensorSource
	ordering Ordering
	logger   *zap.Logger
}

// NewProjector creates a projector over source
func NewProjector(source SensorSource, ordering Ordering, logger *zap.Logger) *Projector {
	return &Projector{
		source:   source,
		ordering: ordering,
		logger:   logger,
	}
}

// Rows returns the projected table, or an empty one when the source failed.
func (p *Projector) Rows(ctx context.Context, limit int, tzOffset *time.Duration) []models.ProjectedRow {
	return p.History(ctx, limit, tzOffset).Rows
}

// History fetches up to limit newest readings and projects them.
// It never returns an error; failures are reported through Status.
func (p *Projector) History(ctx context.Context, limit int, tzOffset *time.Duration) (result models.HistoryResult) {
	if limit <= 0 {
		p.logger.Debug("Non-positive history limit, using default",
			zap.Int("limit", limit),
			zap.Int("default", DefaultLimit),
		)
		limit = DefaultLimit
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Sensor source panicked", zap.Any("panic", r))
			result = unavailable(fmt.Errorf("sensor source panic: %v", r))
		}
	}()

	readings, err := p.source.Query(ctx, TimestampField, Descending, int64(limit))
	if err != nil {
		p.logger.Error("Failed to fetch sensor history", zap.Int("limit", limit), zap.Error(err))
		return unavailable(err)
	}

	if len(readings) > limit {
		readings = readings[:limit]
	}
	if len(readings) == 0 {
		return models.HistoryResult{Status: models.HistoryEmpty, Rows: []models.ProjectedRow{}}
	}

	rows := Project(Chronological(readings, p.ordering), tzOffset)

	p.logger.Debug("Projected sensor history",
		zap.Int("rows", len(rows)),
		zap.Int("dose_count", rows[len(rows)-1].JumlahObat),
		zap.String("ordering", string(p.ordering)),
	)

	return models.HistoryResult{Status: models.HistoryOK, Rows: rows}
}

func unavailable(err error) models.HistoryResult {
	return models.HistoryResult{
		Status: models.HistorySourceUnavailable,
		Rows:   []models.ProjectedRow{},
		Reason: err.Error(),
	}
}

// Chronological converts a newest-first batch into oldest-first order.
// The input slice is not modified.
func Chronological(newestFirst []models.SensorReading, ordering Ordering) []models.SensorReading {
	out := make([]models.SensorReading, len(newestFirst))
	for i, r := range newestFirst {
		out[len(newestFirst)-1-i] = r
	}

	if ordering != OrderTimestamp {
		return out
	}

	// A reading without timestamp keeps the key of the closest earlier one, so it
	// stays next to its neighbour instead of jumping to either end.
	keys := make([]time.Time, len(out))
	var last time.Time
	for i, r := range out {
		if r.Timestamp != nil {
			last = *r.Timestamp
		}
		keys[i] = last
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].Before(keys[idx[b]])
	})

	sorted := make([]models.SensorReading, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// Project walks chronological readings once and derives the dose count.
func Project(chronological []models.SensorReading, tzOffset *time.Duration) []models.ProjectedRow {
	rows := make([]models.ProjectedRow, 0, len(chronological))

	var previousLDR *float64
	doseCount := 0
	for i, r := range chronological {
		if i > 0 && Crossed(previousLDR, r.LDRValue) {
			doseCount++
		}
		previousLDR = r.LDRValue

		rows = append(rows, models.ProjectedRow{
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			LDRValue:    r.LDRValue,
			JumlahObat:  doseCount,
			Timestamp:   ShiftTimestamp(r.Timestamp, tzOffset),
		})
	}
	return rows
}

// Crossed reports an upward crossing of DoseThreshold. Nil on either side is never a crossing.
func Crossed(previous, current *float64) bool {
	if previous == nil || current == nil {
		return false
	}
	return *previous < DoseThreshold && *current >= DoseThreshold
}

// ShiftTimestamp adds offset to ts; nil stays nil
func ShiftTimestamp(ts *time.Time, offset *time.Duration) *time.Time {
	if ts == nil {
		return nil
	}
	shifted := *ts
	if offset != nil {
		shifted = shifted.Add(*offset)
	}
	return &shifted
}

// ValidOffsetHours false for NaN, infinities and anything past MaxOffsetHours
func ValidOffsetHours(hours float64) bool {
	return hours >= -MaxOffsetHours && hours <= MaxOffsetHours
}

// HoursOffset converts a possibly fractional hour count into an offset
func HoursOffset(hours float64) *time.Duration {
	d := time.Duration(hours * float64(time.Hour))
	return &d
}

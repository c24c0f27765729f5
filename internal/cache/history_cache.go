package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-medbox/internal/models"
	"wisefido-medbox/internal/projector"
	"wisefido-medbox/internal/store"

	"go.uber.org/zap"
)

// HistoryCache keeps the last projected table per (limit, offset) so the
// "latest" view only needs the newest reading between full refreshes.
type HistoryCache struct {
	kv     store.KV
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Snapshot cached table and the time of the full projection it came from.
// Patching keeps RefreshedAt, so a table polled through "latest" still
// expires ttl after its last full refresh.
type Snapshot struct {
	RefreshedAt time.Time             `json:"refreshed_at"`
	Rows        []models.ProjectedRow `json:"rows"`
}

// NewHistoryCache creates the cache; ttl bounds how long a table is patched before a full refresh
func NewHistoryCache(kv store.KV, ttl time.Duration, logger *zap.Logger) *HistoryCache {
	return &HistoryCache{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Key medbox:history:<limit>:<offset minutes or "none">
func Key(limit int, tzOffset *time.Duration) string {
	offset := "none"
	if tzOffset != nil {
		offset = fmt.Sprintf("%d", int64(*tzOffset/time.Minute))
	}
	return fmt.Sprintf("medbox:history:%d:%s", limit, offset)
}

// Get returns the cached snapshot, ok=false on miss, decode error or expiry
func (c *HistoryCache) Get(ctx context.Context, limit int, tzOffset *time.Duration) (Snapshot, bool) {
	key := Key(limit, tzOffset)
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			c.logger.Warn("Failed to read history cache", zap.String("key", key), zap.Error(err))
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		c.logger.Warn("Discarding undecodable history cache", zap.String("key", key), zap.Error(err))
		return Snapshot{}, false
	}
	if c.remaining(snap) <= 0 {
		return Snapshot{}, false
	}
	return snap, true
}

// Put stores the table of a full projection, starting a new ttl window
func (c *HistoryCache) Put(ctx context.Context, limit int, tzOffset *time.Duration, rows []models.ProjectedRow) error {
	return c.write(ctx, limit, tzOffset, Snapshot{RefreshedAt: c.now(), Rows: rows}, c.ttl)
}

// PutPatched replaces the rows of prev and keeps its RefreshedAt and expiry.
// Nothing is written when prev has already expired.
func (c *HistoryCache) PutPatched(ctx context.Context, limit int, tzOffset *time.Duration, prev Snapshot, rows []models.ProjectedRow) error {
	left := c.remaining(prev)
	if left <= 0 {
		return nil
	}
	return c.write(ctx, limit, tzOffset, Snapshot{RefreshedAt: prev.RefreshedAt, Rows: rows}, left)
}

// remaining ttl of snap; without a ttl snapshots never expire
func (c *HistoryCache) remaining(snap Snapshot) time.Duration {
	if c.ttl <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return c.ttl - c.now().Sub(snap.RefreshedAt)
}

func (c *HistoryCache) write(ctx context.Context, limit int, tzOffset *time.Duration, snap Snapshot, ttl time.Duration) error {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal history rows: %w", err)
	}

	// the KV treats ttl <= 0 as "no expiry"
	if c.ttl <= 0 {
		ttl = 0
	}

	key := Key(limit, tzOffset)
	if err := c.kv.Set(ctx, key, string(jsonData), ttl); err != nil {
		return fmt.Errorf("failed to set history cache: %w", err)
	}

	c.logger.Debug("Updated history cache", zap.String("key", key), zap.Int("rows", len(snap.Rows)))
	return nil
}

// PatchLatest merges the newest reading into a cached chronological table.
// Same timestamp as the last row replaces it; a later timestamp appends. The
// dose count continues from the preceding row with the usual crossing rule.
// ok=false means the caller must do a full projection instead: the reading
// has no timestamp, the table cannot be aligned, or appending would grow the
// table past limit.
func PatchLatest(rows []models.ProjectedRow, latest models.SensorReading, tzOffset *time.Duration, limit int) ([]models.ProjectedRow, bool) {
	ts := projector.ShiftTimestamp(latest.Timestamp, tzOffset)
	if ts == nil || len(rows) == 0 {
		return nil, false
	}

	last := rows[len(rows)-1]
	if last.Timestamp == nil {
		return nil, false
	}

	var prefix []models.ProjectedRow
	switch {
	case ts.Equal(*last.Timestamp):
		prefix = rows[:len(rows)-1]
	case ts.After(*last.Timestamp):
		if len(rows) >= limit {
			return nil, false
		}
		prefix = rows
	default:
		// newest reading is older than the table: nothing to patch
		return rows, true
	}

	doseCount := 0
	var previousLDR *float64
	if len(prefix) > 0 {
		prev := prefix[len(prefix)-1]
		doseCount = prev.JumlahObat
		previousLDR = prev.LDRValue
		if projector.Crossed(previousLDR, latest.LDRValue) {
			doseCount++
		}
	}

	patched := make([]models.ProjectedRow, len(prefix), len(prefix)+1)
	copy(patched, prefix)
	patched = append(patched, models.ProjectedRow{
		Temperature: latest.Temperature,
		Humidity:    latest.Humidity,
		LDRValue:    latest.LDRValue,
		JumlahObat:  doseCount,
		Timestamp:   ts,
	})
	return patched, true
}

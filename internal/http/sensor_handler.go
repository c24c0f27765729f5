package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wisefido-medbox/internal/models"
	"wisefido-medbox/internal/projector"

	"go.uber.org/zap"
)

// HistoryProvider what the sensor endpoints need from the history service
type HistoryProvider interface {
	History(ctx context.Context, limit int, tzOffset *time.Duration) models.HistoryResult
	Latest(ctx context.Context, limit int, tzOffset *time.Duration) models.HistoryResult
	Export(ctx context.Context, limit int, tzOffset *time.Duration) ([]byte, models.HistoryResult, error)
}

// SensorHandler sensor history endpoints
type SensorHandler struct {
	history       HistoryProvider
	defaultLimit  int
	defaultOffset *time.Duration
	logger        *zap.Logger
}

// NewSensorHandler creates the handler; defaultOffset nil means no shift unless requested
func NewSensorHandler(history HistoryProvider, defaultLimit int, defaultOffset *time.Duration, logger *zap.Logger) *SensorHandler {
	if defaultLimit <= 0 || defaultLimit > projector.MaxLimit {
		defaultLimit = projector.DefaultLimit
	}
	return &SensorHandler{
		history:       history,
		defaultLimit:  defaultLimit,
		defaultOffset: defaultOffset,
		logger:        logger,
	}
}

// parseQuery reads ?limit= and ?tz_offset= (hours, or "none")
func (h *SensorHandler) parseQuery(r *http.Request) (int, *time.Duration, error) {
	q := r.URL.Query()

	limit, err := queryInt(q, "limit", h.defaultLimit)
	if err != nil {
		return 0, nil, err
	}
	if limit <= 0 || limit > projector.MaxLimit {
		return 0, nil, fmt.Errorf("limit must be between 1 and %d", projector.MaxLimit)
	}

	raw := strings.TrimSpace(q.Get("tz_offset"))
	switch raw {
	case "":
		return limit, h.defaultOffset, nil
	case "none":
		return limit, nil, nil
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || !projector.ValidOffsetHours(hours) {
		return 0, nil, fmt.Errorf("tz_offset must be hours between -%g and %g", projector.MaxOffsetHours, projector.MaxOffsetHours)
	}
	return limit, projector.HoursOffset(hours), nil
}

func (h *SensorHandler) writeHistory(w http.ResponseWriter, result models.HistoryResult) {
	if result.Status == models.HistorySourceUnavailable {
		writeJSON(w, http.StatusServiceUnavailable, FailWith("sensor source unavailable", result))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// GetHistory GET /api/v1/sensor/history
func (h *SensorHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := h.parseQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	h.writeHistory(w, h.history.History(r.Context(), limit, offset))
}

// GetLatest GET /api/v1/sensor/history/latest
func (h *SensorHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := h.parseQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	h.writeHistory(w, h.history.Latest(r.Context(), limit, offset))
}

// ExportHistory GET /api/v1/sensor/history/export
func (h *SensorHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := h.parseQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	data, result, err := h.history.Export(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to export sensor history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export sensor history"))
		return
	}
	if result.Status == models.HistorySourceUnavailable {
		h.writeHistory(w, result)
		return
	}

	filename := fmt.Sprintf("sensor_history_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

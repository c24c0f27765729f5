package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wisefido-medbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHistory struct {
	result    models.HistoryResult
	exportErr error
	data      []byte

	gotLimit  int
	gotOffset *time.Duration
}

func (f *fakeHistory) History(ctx context.Context, limit int, tzOffset *time.Duration) models.HistoryResult {
	f.gotLimit, f.gotOffset = limit, tzOffset
	return f.result
}

func (f *fakeHistory) Latest(ctx context.Context, limit int, tzOffset *time.Duration) models.HistoryResult {
	f.gotLimit, f.gotOffset = limit, tzOffset
	return f.result
}

func (f *fakeHistory) Export(ctx context.Context, limit int, tzOffset *time.Duration) ([]byte, models.HistoryResult, error) {
	f.gotLimit, f.gotOffset = limit, tzOffset
	if f.result.Status == models.HistorySourceUnavailable {
		return nil, f.result, f.exportErr
	}
	return f.data, f.result, f.exportErr
}

func newSensorRouter(h *fakeHistory) *Router {
	seven := 7 * time.Hour
	r := NewRouter(zap.NewNop())
	r.RegisterSensorRoutes(NewSensorHandler(h, 50, &seven, zap.NewNop()))
	return r
}

func okResult() models.HistoryResult {
	ts := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	return models.HistoryResult{
		Status: models.HistoryOK,
		Rows: []models.ProjectedRow{
			{LDRValue: models.Float64(1200), JumlahObat: 1, Timestamp: &ts},
		},
	}
}

func TestGetHistory_Defaults(t *testing.T) {
	h := &fakeHistory{result: okResult()}
	r := newSensorRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":2000`)
	assert.Contains(t, w.Body.String(), `"jumlah_obat":1`)
	assert.Equal(t, 50, h.gotLimit)
	require.NotNil(t, h.gotOffset)
	assert.Equal(t, 7*time.Hour, *h.gotOffset)
}

func TestGetHistory_QueryOverrides(t *testing.T) {
	h := &fakeHistory{result: okResult()}
	r := newSensorRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history?limit=10&tz_offset=5.5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, h.gotLimit)
	require.NotNil(t, h.gotOffset)
	assert.Equal(t, 5*time.Hour+30*time.Minute, *h.gotOffset)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history?tz_offset=none", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, h.gotOffset)
}

func TestGetHistory_BadQuery(t *testing.T) {
	r := newSensorRouter(&fakeHistory{result: okResult()})

	for _, q := range []string{
		"limit=-3",
		"limit=abc",
		"limit=1099511627776",
		"limit=10001",
		"tz_offset=abc",
		"tz_offset=20",
		"tz_offset=NaN",
		"tz_offset=-Inf",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetHistory_RejectedQueryNeverReachesSource(t *testing.T) {
	h := &fakeHistory{result: okResult()}
	r := newSensorRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history?limit=1099511627776", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, h.gotLimit)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history?limit=10000&tz_offset=-14", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10000, h.gotLimit)
}

func TestGetHistory_EmptyIsSuccess(t *testing.T) {
	h := &fakeHistory{result: models.HistoryResult{Status: models.HistoryEmpty, Rows: []models.ProjectedRow{}}}
	r := newSensorRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"empty"`)
	assert.Contains(t, w.Body.String(), `"rows":[]`)
}

func TestGetHistory_SourceUnavailable(t *testing.T) {
	h := &fakeHistory{result: models.HistoryResult{
		Status: models.HistorySourceUnavailable,
		Rows:   []models.ProjectedRow{},
		Reason: "connection refused",
	}}
	r := newSensorRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history/latest", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"code":-1`)
	assert.Contains(t, w.Body.String(), `"status":"source_unavailable"`)
}

func TestGetHistory_MethodNotAllowed(t *testing.T) {
	r := newSensorRouter(&fakeHistory{result: okResult()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sensor/history", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestExportHistory(t *testing.T) {
	h := &fakeHistory{result: okResult(), data: []byte("PK\x03\x04")}
	r := newSensorRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history/export", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="sensor_history_`))
	assert.Equal(t, "PK\x03\x04", w.Body.String())
}

func TestExportHistory_Failures(t *testing.T) {
	h := &fakeHistory{result: okResult(), exportErr: errors.New("boom")}
	r := newSensorRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history/export", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	h.exportErr = nil
	h.result = models.HistoryResult{Status: models.HistorySourceUnavailable, Rows: []models.ProjectedRow{}}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sensor/history/export", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthRoute(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.RegisterHealthRoute()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"up"`)
}

package service

import (
	"context"
	"time"

	"wisefido-medbox/internal/cache"
	"wisefido-medbox/internal/export"
	"wisefido-medbox/internal/models"
	"wisefido-medbox/internal/projector"

	"go.uber.org/zap"
)

// HistoryService serves the sensor history table. The projector is always
// called fresh; caching and last-row patching happen here.
type HistoryService struct {
	projector    *projector.Projector
	source       projector.SensorSource
	cache        *cache.HistoryCache
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// NewHistoryService creates the service; historyCache may be nil
func NewHistoryService(
	source projector.SensorSource,
	ordering projector.Ordering,
	historyCache *cache.HistoryCache,
	fetchTimeout time.Duration,
	logger *zap.Logger,
) *HistoryService {
	return &HistoryService{
		projector:    projector.NewProjector(source, ordering, logger),
		source:       source,
		cache:        historyCache,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

func (s *HistoryService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.fetchTimeout)
}

// History full projection; a successful table refreshes the cache
func (s *HistoryService) History(ctx context.Context, limit int, tzOffset *time.Duration) models.HistoryResult {
	if limit <= 0 {
		limit = projector.DefaultLimit
	}

	fetchCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	result := s.projector.History(fetchCtx, limit, tzOffset)
	if result.Status == models.HistoryOK && s.cache != nil {
		if err := s.cache.Put(ctx, limit, tzOffset, result.Rows); err != nil {
			s.logger.Warn("Failed to cache sensor history", zap.Error(err))
		}
	}
	return result
}

// Latest serves the cached table patched with the newest reading, falling
// back to a full projection when nothing usable is cached.
func (s *HistoryService) Latest(ctx context.Context, limit int, tzOffset *time.Duration) models.HistoryResult {
	if limit <= 0 {
		limit = projector.DefaultLimit
	}
	if s.cache == nil {
		return s.History(ctx, limit, tzOffset)
	}

	snap, ok := s.cache.Get(ctx, limit, tzOffset)
	if !ok {
		return s.History(ctx, limit, tzOffset)
	}

	fetchCtx, cancel := s.withTimeout(ctx)
	newest, err := s.source.Query(fetchCtx, projector.TimestampField, projector.Descending, 1)
	cancel()
	if err != nil {
		s.logger.Warn("Failed to fetch newest reading, serving cached history", zap.Error(err))
		return models.HistoryResult{Status: models.HistoryOK, Rows: snap.Rows}
	}
	if len(newest) == 0 {
		return models.HistoryResult{Status: models.HistoryOK, Rows: snap.Rows}
	}

	patched, ok := cache.PatchLatest(snap.Rows, newest[0], tzOffset, limit)
	if !ok {
		return s.History(ctx, limit, tzOffset)
	}

	if err := s.cache.PutPatched(ctx, limit, tzOffset, snap, patched); err != nil {
		s.logger.Warn("Failed to cache patched sensor history", zap.Error(err))
	}
	return models.HistoryResult{Status: models.HistoryOK, Rows: patched}
}

// Export renders a fresh projection as xlsx
func (s *HistoryService) Export(ctx context.Context, limit int, tzOffset *time.Duration) ([]byte, models.HistoryResult, error) {
	result := s.History(ctx, limit, tzOffset)
	if result.Status == models.HistorySourceUnavailable {
		return nil, result, nil
	}
	data, err := export.GenerateHistoryExport(result.Rows)
	if err != nil {
		return nil, result, err
	}
	return data, result, nil
}

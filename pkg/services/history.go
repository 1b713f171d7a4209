package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
)

// HistoryService exposes the append-only execution history and enforces the
// age-based retention bound.
type HistoryService interface {
	// List returns history entries for a connection ordered by creation
	// time ascending. A limit of 0 returns all entries.
	List(ctx context.Context, connectionID uuid.UUID, limit int) ([]*models.HistoryEntry, error)

	// Prune removes entries older than the retention period. Returns the
	// number of entries removed.
	Prune(ctx context.Context, retentionDays int) (int64, error)

	// RunScheduler starts a background goroutine that prunes old entries on
	// the given interval. It runs immediately on startup, then repeats every
	// interval. Cancel the context to stop the scheduler.
	RunScheduler(ctx context.Context, interval time.Duration, retentionDays int)
}

type historyService struct {
	repo   repositories.HistoryRepository
	logger *zap.Logger
}

// NewHistoryService creates a history service.
func NewHistoryService(repo repositories.HistoryRepository, logger *zap.Logger) HistoryService {
	return &historyService{
		repo:   repo,
		logger: logger.Named("history-service"),
	}
}

var _ HistoryService = (*historyService)(nil)

func (s *historyService) List(ctx context.Context, connectionID uuid.UUID, limit int) ([]*models.HistoryEntry, error) {
	return s.repo.ListByConnection(ctx, connectionID, limit)
}

func (s *historyService) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info("history retention cleanup completed",
			zap.Int("retention_days", retentionDays),
			zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// RunScheduler starts a background loop that prunes old history entries.
func (s *historyService) RunScheduler(ctx context.Context, interval time.Duration, retentionDays int) {
	go func() {
		s.logger.Info("history retention scheduler started",
			zap.Duration("interval", interval),
			zap.Int("retention_days", retentionDays))

		if _, err := s.Prune(ctx, retentionDays); err != nil {
			s.logger.Error("history retention sweep failed", zap.Error(err))
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("history retention scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.Prune(ctx, retentionDays); err != nil {
					s.logger.Error("history retention sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

package service

import (
	"context"
	"log/slog"
	"time"
)

type CleanupStore interface {
	DeletePendingUsersBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// pendingUserMaxAge is how long an abandoned signup survives before the
// sweep removes it.
const pendingUserMaxAge = 24 * time.Hour

// CleanupService removes abandoned pending signups and expired tokens.
type CleanupService struct {
	Store  CleanupStore
	Logger *slog.Logger
	Now    func() time.Time
}

func (s *CleanupService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sweep runs one cleanup pass.
func (s *CleanupService) Sweep(ctx context.Context) error {
	now := s.now()

	users, err := s.Store.DeletePendingUsersBefore(ctx, now.Add(-pendingUserMaxAge))
	if err != nil {
		return err
	}
	tokens, err := s.Store.DeleteExpiredTokens(ctx, now)
	if err != nil {
		return err
	}

	if s.Logger != nil && (users > 0 || tokens > 0) {
		s.Logger.Info("cleanup sweep", "pending_users_deleted", users, "expired_tokens_deleted", tokens)
	}
	return nil
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *CleanupService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && s.Logger != nil {
				s.Logger.Error("cleanup sweep failed", "err", err)
			}
		}
	}
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/journey"
)

type BusinessLinksStore interface {
	CountActiveBusinessLinks(ctx context.Context, userID string) (int, error)
}

// JourneyService loads the raw inputs, derives the journey state and
// picks the next route, consulting the snapshot cache first.
type JourneyService struct {
	Users       UsersStore
	Credentials CredentialsStore
	Accounts    AccountsStore
	Businesses  BusinessLinksStore
	Cache       *journey.Cache
	Now         func() time.Time
}

func (s *JourneyService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// State returns the derived journey snapshot for a user. The cache is
// advisory: a hit inside the staleness TTL is served as-is, anything
// else is re-derived from the store.
func (s *JourneyService) State(ctx context.Context, userID string) (journey.Snapshot, error) {
	if snap, ok := s.Cache.Get(ctx, userID); ok {
		return snap, nil
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return journey.Snapshot{}, err
	}

	hasCredential := true
	if _, err := s.Credentials.GetCredentialByUserID(ctx, userID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return journey.Snapshot{}, err
		}
		hasCredential = false
	}

	providers, err := s.Accounts.ListProvidersByUserID(ctx, userID)
	if err != nil {
		return journey.Snapshot{}, err
	}

	links, err := s.Businesses.CountActiveBusinessLinks(ctx, userID)
	if err != nil {
		return journey.Snapshot{}, err
	}

	now := s.now()
	c := journey.Derive(u, hasCredential, len(providers) > 0, links > 0)
	snap := journey.Snapshot{
		Classification: c,
		Route:          journey.NextRoute(c, now),
		DerivedAt:      now,
	}

	_ = s.Cache.Put(ctx, userID, snap)
	return snap, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BusinessLinksStore struct {
	pool *pgxpool.Pool
}

func NewBusinessLinksStore(pool *pgxpool.Pool) *BusinessLinksStore {
	return &BusinessLinksStore{pool: pool}
}

// CountActiveBusinessLinks counts memberships of businesses that are
// still active. The journey router only cares whether this is > 0.
func (s *BusinessLinksStore) CountActiveBusinessLinks(ctx context.Context, userID string) (int, error) {
	const q = `
		SELECT count(*)
		FROM business_members m
		JOIN businesses b ON b.id = m.business_id
		WHERE m.user_id = $1 AND b.is_active
	`

	var count int
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count business links: %w", err)
	}
	return count, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/samburke97/bord-business-sub001/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SecurityEventsStore struct {
	pool *pgxpool.Pool
}

func NewSecurityEventsStore(pool *pgxpool.Pool) *SecurityEventsStore {
	return &SecurityEventsStore{pool: pool}
}

func (s *SecurityEventsStore) AppendSecurityEvent(ctx context.Context, event domain.SecurityEvent) error {
	const q = `
		INSERT INTO security_events (user_id, event_type, description, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, q,
		nullIfEmpty(event.UserID),
		event.EventType,
		event.Description,
		nullIfEmpty(event.IP),
		nullIfEmpty(event.UserAgent),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append security event: %w", err)
	}
	return nil
}

func (s *SecurityEventsStore) ListSecurityEvents(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error) {
	const q = `
		SELECT id, user_id, event_type, description, ip, user_agent, created_at
		FROM security_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		e, err := scanSecurityEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	return events, nil
}

func scanSecurityEvent(row pgx.Row) (domain.SecurityEvent, error) {
	var (
		e        domain.SecurityEvent
		idUUID   pgtype.UUID
		userUUID pgtype.UUID
		ip       pgtype.Text
		ua       pgtype.Text
	)
	if err := row.Scan(&idUUID, &userUUID, &e.EventType, &e.Description, &ip, &ua, &e.CreatedAt); err != nil {
		return domain.SecurityEvent{}, fmt.Errorf("scan security event: %w", err)
	}
	e.ID = uuidOrEmpty(idUUID)
	e.UserID = uuidOrEmpty(userUUID)
	e.IP = textOrEmpty(ip)
	e.UserAgent = textOrEmpty(ua)
	return e, nil
}

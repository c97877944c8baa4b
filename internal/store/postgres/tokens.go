package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokensStore struct {
	pool *pgxpool.Pool
}

func NewTokensStore(pool *pgxpool.Pool) *TokensStore {
	return &TokensStore{pool: pool}
}

func (s *TokensStore) CreateToken(ctx context.Context, token domain.VerificationToken) (string, error) {
	const q = `
		INSERT INTO verification_tokens (identifier, token_hash, purpose, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var idUUID pgtype.UUID
	err := s.pool.QueryRow(ctx, q,
		token.Identifier,
		token.TokenHash,
		string(token.Purpose),
		token.CreatedAt,
		token.ExpiresAt,
	).Scan(&idUUID)
	if err != nil {
		return "", fmt.Errorf("create verification token: %w", err)
	}
	return uuidOrEmpty(idUUID), nil
}

func (s *TokensStore) FindValidTokens(ctx context.Context, identifier string, purpose domain.TokenPurpose, now time.Time) ([]domain.VerificationToken, error) {
	const q = `
		SELECT id, identifier, token_hash, purpose, created_at, expires_at
		FROM verification_tokens
		WHERE identifier = $1 AND purpose = $2 AND expires_at > $3
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, q, identifier, string(purpose), now)
	if err != nil {
		return nil, fmt.Errorf("find valid tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.VerificationToken
	for rows.Next() {
		var (
			t      domain.VerificationToken
			idUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &t.Identifier, &t.TokenHash, &t.Purpose, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan verification token: %w", err)
		}
		t.ID = uuidOrEmpty(idUUID)
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find valid tokens: %w", err)
	}
	return tokens, nil
}

func (s *TokensStore) DeleteTokenByID(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete verification token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *TokensStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

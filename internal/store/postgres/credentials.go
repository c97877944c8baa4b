package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const credentialColumns = `
	id, user_id, password_hash, password_changed_at, must_change_password,
	failed_attempts, locked_until, last_login_at, last_login_ip, last_login_user_agent,
	created_at, updated_at
`

type CredentialsStore struct {
	pool *pgxpool.Pool
}

func NewCredentialsStore(pool *pgxpool.Pool) *CredentialsStore {
	return &CredentialsStore{pool: pool}
}

func (s *CredentialsStore) CreateCredential(ctx context.Context, userID, passwordHash string) (domain.Credential, error) {
	q := `
		INSERT INTO credentials (user_id, password_hash)
		VALUES ($1, $2)
		RETURNING ` + credentialColumns

	c, err := scanCredential(s.pool.QueryRow(ctx, q, userID, passwordHash))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("create credential: %w", err)
	}
	return c, nil
}

func (s *CredentialsStore) GetCredentialByUserID(ctx context.Context, userID string) (domain.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = $1`

	c, err := scanCredential(s.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Credential{}, domain.ErrNotFound
		}
		return domain.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (s *CredentialsStore) SetPasswordHash(ctx context.Context, credentialID, passwordHash string, when time.Time) error {
	const q = `
		UPDATE credentials
		SET password_hash = $2,
		    password_changed_at = $3,
		    failed_attempts = 0,
		    locked_until = NULL,
		    updated_at = $3
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, credentialID, passwordHash, when)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *CredentialsStore) RecordLoginSuccess(ctx context.Context, credentialID string, when time.Time, ip, userAgent string) error {
	const q = `
		UPDATE credentials
		SET failed_attempts = 0,
		    locked_until = NULL,
		    last_login_at = $2,
		    last_login_ip = $3,
		    last_login_user_agent = $4,
		    updated_at = $2
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, credentialID, when, nullIfEmpty(ip), nullIfEmpty(userAgent))
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

func (s *CredentialsStore) RecordLoginFailure(ctx context.Context, credentialID string, failedAttempts int, lockedUntil *time.Time) error {
	const q = `
		UPDATE credentials
		SET failed_attempts = $2,
		    locked_until = $3,
		    updated_at = now()
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, credentialID, failedAttempts, lockedUntil)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (s *CredentialsStore) ListPasswordHistory(ctx context.Context, credentialID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	const q = `
		SELECT id, credential_id, password_hash, created_at
		FROM password_history
		WHERE credential_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, q, credentialID, limit)
	if err != nil {
		return nil, fmt.Errorf("list password history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PasswordHistoryEntry
	for rows.Next() {
		var (
			e      domain.PasswordHistoryEntry
			idUUID pgtype.UUID
			crUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &crUUID, &e.PasswordHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		e.ID = uuidOrEmpty(idUUID)
		e.CredentialID = uuidOrEmpty(crUUID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list password history: %w", err)
	}
	return entries, nil
}

// CompletePasswordReset applies the reset as one transaction: history
// push, credential overwrite, token consumption, expired-row sweep and
// audit event. If the token row is already gone the whole transaction
// rolls back and the caller sees ErrTokenInvalid.
func (s *CredentialsStore) CompletePasswordReset(ctx context.Context, reset domain.PasswordReset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM verification_tokens WHERE id = $1`, reset.TokenID)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenInvalid
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO password_history (credential_id, password_hash, created_at) VALUES ($1, $2, $3)`,
		reset.CredentialID, reset.OldHash, reset.When,
	); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE credentials
		SET password_hash = $2,
		    password_changed_at = $3,
		    failed_attempts = 0,
		    locked_until = NULL,
		    must_change_password = FALSE,
		    updated_at = $3
		WHERE id = $1
	`, reset.CredentialID, reset.NewHash, reset.When)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM verification_tokens WHERE identifier = $1 AND expires_at <= $2`,
		reset.Identifier, reset.When,
	); err != nil {
		return fmt.Errorf("sweep expired tokens: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO security_events (user_id, event_type, description, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reset.UserID, domain.SecurityEventPasswordReset, "password reset via token",
		nullIfEmpty(reset.IP), nullIfEmpty(reset.UserAgent), reset.When,
	); err != nil {
		return fmt.Errorf("append security event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}
	return nil
}

func scanCredential(row pgx.Row) (domain.Credential, error) {
	var (
		c         domain.Credential
		idUUID    pgtype.UUID
		userUUID  pgtype.UUID
		changedAt pgtype.Timestamptz
		lockedTS  pgtype.Timestamptz
		loginTS   pgtype.Timestamptz
		loginIP   pgtype.Text
		loginUA   pgtype.Text
	)
	err := row.Scan(
		&idUUID,
		&userUUID,
		&c.PasswordHash,
		&changedAt,
		&c.MustChangePassword,
		&c.FailedAttempts,
		&lockedTS,
		&loginTS,
		&loginIP,
		&loginUA,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Credential{}, err
	}

	c.ID = uuidOrEmpty(idUUID)
	c.UserID = uuidOrEmpty(userUUID)
	c.PasswordChangedAt = timestamptzPtr(changedAt)
	c.LockedUntil = timestamptzPtr(lockedTS)
	c.LastLoginAt = timestamptzPtr(loginTS)
	c.LastLoginIP = textOrEmpty(loginIP)
	c.LastLoginUserAgent = textOrEmpty(loginUA)
	return c, nil
}

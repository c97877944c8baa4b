package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/samburke97/bord-business-sub001/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountsStore struct {
	pool *pgxpool.Pool
}

func NewAccountsStore(pool *pgxpool.Pool) *AccountsStore {
	return &AccountsStore{pool: pool}
}

func (s *AccountsStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = (
			SELECT user_id FROM external_accounts
			WHERE provider = $1 AND provider_account_id = $2
		)
	`

	u, err := scanUser(s.pool.QueryRow(ctx, q, provider, providerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by external account: %w", err)
	}
	return u, nil
}

// CreateUserWithExternalAccount creates the pending user row and its
// provider link in one transaction, so two concurrent first logins for
// the same email cannot each create half the pair.
func (s *AccountsStore) CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email string) (domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin oauth signup tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `
		INSERT INTO users (email, status, global_role)
		VALUES ($1, 'pending', 'user')
		RETURNING ` + userColumns

	u, err := scanUser(tx.QueryRow(ctx, q, email))
	if err != nil {
		return domain.User{}, mapAccountWriteError(err, "create oauth user")
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO external_accounts (user_id, provider, provider_account_id, email)
		 VALUES ($1, $2, $3, $4)`,
		u.ID, provider, providerID, email,
	); err != nil {
		return domain.User{}, mapAccountWriteError(err, "create external account")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("commit oauth signup tx: %w", err)
	}
	return u, nil
}

func (s *AccountsStore) LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	const q = `
		INSERT INTO external_accounts (user_id, provider, provider_account_id, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, provider, provider_account_id, email, created_at
	`

	var (
		a        domain.ExternalAccount
		idUUID   pgtype.UUID
		userUUID pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, q, userID, provider, providerID, email).Scan(
		&idUUID,
		&userUUID,
		&a.Provider,
		&a.ProviderID,
		&a.Email,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.ExternalAccount{}, mapAccountWriteError(err, "link external account")
	}

	a.ID = uuidOrEmpty(idUUID)
	a.UserID = uuidOrEmpty(userUUID)
	return a, nil
}

func (s *AccountsStore) ListProvidersByUserID(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT provider FROM external_accounts WHERE user_id = $1 ORDER BY provider`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

func mapAccountWriteError(err error, op string) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_email_uq":
			return domain.ErrEmailTaken
		case "external_accounts_provider_uq":
			return domain.ErrExternalAccountTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

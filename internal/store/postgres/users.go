package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `
	id, email, first_name, last_name, username, phone, date_of_birth,
	status, global_role, is_verified, is_active,
	business_intention, intention_set_at, has_viewed_success, onboarding_step,
	created_at, updated_at, email_verified_at, profile_completed_at
`

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

func (s *UsersStore) CreateUser(ctx context.Context, email string) (domain.User, error) {
	q := `
		INSERT INTO users (email, status, global_role)
		VALUES ($1, 'pending', 'user')
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		return domain.User{}, mapUserWriteError(err, "create user")
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) LIMIT 1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UsersStore) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (domain.User, error) {
	q := `
		UPDATE users
		SET first_name = $2,
		    last_name = $3,
		    username = $4,
		    phone = $5,
		    date_of_birth = $6,
		    profile_completed_at = $7,
		    is_verified = (is_verified OR $8),
		    email_verified_at = CASE WHEN $8 AND email_verified_at IS NULL THEN $7 ELSE email_verified_at END,
		    status = CASE WHEN $9 THEN 'active' ELSE status END,
		    is_active = (is_active OR $9),
		    updated_at = $7
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q,
		userID,
		update.FirstName,
		update.LastName,
		update.Username,
		update.Phone,
		update.DateOfBirth,
		update.When,
		update.Verify,
		update.Activate,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, mapUserWriteError(err, "update profile")
	}
	return u, nil
}

func (s *UsersStore) SetBusinessIntention(ctx context.Context, userID string, intention domain.BusinessIntention, when time.Time) (domain.User, error) {
	q := `
		UPDATE users
		SET business_intention = $2, intention_set_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, userID, string(intention), when))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("set business intention: %w", err)
	}
	return u, nil
}

func (s *UsersStore) SetViewedSuccess(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET has_viewed_success = TRUE, updated_at = $2
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, userID, when)
	if err != nil {
		return fmt.Errorf("set viewed success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CompleteEmailVerification claims the code row and promotes the user
// in one transaction, so a concurrent consumer observes either both
// effects or neither.
func (s *UsersStore) CompleteEmailVerification(ctx context.Context, userID, tokenID string, when time.Time, ip, userAgent string) (domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin verification tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var identifier string
	err = tx.QueryRow(ctx, `DELETE FROM verification_tokens WHERE id = $1 RETURNING identifier`, tokenID).Scan(&identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("consume verification token: %w", err)
	}

	q := `
		UPDATE users
		SET is_verified = TRUE,
		    email_verified_at = COALESCE(email_verified_at, $2),
		    status = 'active',
		    is_active = TRUE,
		    updated_at = $2
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(tx.QueryRow(ctx, q, userID, when))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("mark email verified: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM verification_tokens WHERE identifier = $1 AND expires_at <= $2`,
		identifier, when,
	); err != nil {
		return domain.User{}, fmt.Errorf("sweep expired tokens: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO security_events (user_id, event_type, description, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, domain.SecurityEventEmailVerified, "", nullIfEmpty(ip), nullIfEmpty(userAgent), when,
	); err != nil {
		return domain.User{}, fmt.Errorf("append security event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("commit verification tx: %w", err)
	}
	return u, nil
}

func (s *UsersStore) DeletePendingUsersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM users WHERE status = 'pending' AND created_at < $1`

	tag, err := s.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete pending users: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u             domain.User
		idUUID        pgtype.UUID
		firstName     pgtype.Text
		lastName      pgtype.Text
		username      pgtype.Text
		phone         pgtype.Text
		dob           pgtype.Date
		intention     pgtype.Text
		intentionAt   pgtype.Timestamptz
		onboarding    pgtype.Text
		verifiedAt    pgtype.Timestamptz
		profileDoneAt pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&u.Email,
		&firstName,
		&lastName,
		&username,
		&phone,
		&dob,
		&u.Status,
		&u.GlobalRole,
		&u.IsVerified,
		&u.IsActive,
		&intention,
		&intentionAt,
		&u.HasViewedSuccess,
		&onboarding,
		&u.CreatedAt,
		&u.UpdatedAt,
		&verifiedAt,
		&profileDoneAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.ID = uuidOrEmpty(idUUID)
	u.FirstName = textOrEmpty(firstName)
	u.LastName = textOrEmpty(lastName)
	u.Username = textOrEmpty(username)
	u.Phone = textOrEmpty(phone)
	u.OnboardingStep = textOrEmpty(onboarding)
	if dob.Valid {
		d := dob.Time
		u.DateOfBirth = &d
	}
	if intention.Valid && intention.String != "" {
		i := domain.BusinessIntention(intention.String)
		u.BusinessIntention = &i
	}
	u.IntentionSetAt = timestamptzPtr(intentionAt)
	u.EmailVerifiedAt = timestamptzPtr(verifiedAt)
	u.ProfileCompletedAt = timestamptzPtr(profileDoneAt)
	return u, nil
}

func mapUserWriteError(err error, op string) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_username_uq":
			return domain.ErrUsernameTaken
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/simple-account/pkg/utils"
)

// Repository is the persistence interface for user accounts. Lookups return
// (nil, nil) when no row matches. WithTx returns a repository bound to the
// given transaction so calls participate in an enclosing unit of work.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Save(ctx context.Context, u *User) error
	WithTx(tx pgx.Tx) Repository
}

// rowQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository on postgres.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository creates a postgres-backed user repository.
func NewPostgresRepository(db rowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithTx returns a repository running its statements on the transaction.
func (r *PostgresRepository) WithTx(tx pgx.Tx) Repository {
	if tx == nil {
		return r
	}
	return &PostgresRepository{db: tx}
}

const userColumns = `id, email, password, first_name, last_name, username, avatar,
	terms_version, two_factor, is_active, verify_email, count_login_failed,
	created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = utils.NormalizeEmail(u.Email)

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.ID, u.Email, u.Password,
		utils.ToNullString(u.FirstName), utils.ToNullString(u.LastName),
		utils.ToNullString(u.Username), utils.ToNullString(u.Avatar),
		utils.ToNullString(u.TermsVersion),
		u.TwoFactor, u.IsActive, u.VerifyEmail, u.CountLoginFailed,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1`,
		utils.NormalizeEmail(email),
	)
	return scanUser(row)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func (r *PostgresRepository) Save(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()
	u.Email = utils.NormalizeEmail(u.Email)

	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET email = $2, password = $3, first_name = $4, last_name = $5,
			username = $6, avatar = $7, terms_version = $8, two_factor = $9,
			is_active = $10, verify_email = $11, count_login_failed = $12,
			updated_at = $13
		WHERE id = $1`,
		u.ID, u.Email, u.Password,
		utils.ToNullString(u.FirstName), utils.ToNullString(u.LastName),
		utils.ToNullString(u.Username), utils.ToNullString(u.Avatar),
		utils.ToNullString(u.TermsVersion),
		u.TwoFactor, u.IsActive, u.VerifyEmail, u.CountLoginFailed,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", u.ID)
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var firstName, lastName, username, avatar, termsVersion *string

	err := row.Scan(
		&u.ID, &u.Email, &u.Password,
		&firstName, &lastName, &username, &avatar, &termsVersion,
		&u.TwoFactor, &u.IsActive, &u.VerifyEmail, &u.CountLoginFailed,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.FirstName = deref(firstName)
	u.LastName = deref(lastName)
	u.Username = deref(username)
	u.Avatar = deref(avatar)
	u.TermsVersion = deref(termsVersion)
	return &u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

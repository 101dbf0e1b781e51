package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/simple-account/pkg/user"
	"github.com/tendant/simple-account/pkg/utils"
)

// Repository is the persistence interface for tokens. Lookups return
// (nil, nil) on a miss. WithTx binds the repository to a transaction.
type Repository interface {
	Create(ctx context.Context, t *Token) error
	FindByTypeAndValueWithUser(ctx context.Context, typ Type, value string) (*Token, error)
	FindByUserAndType(ctx context.Context, userID uuid.UUID, typ Type) ([]Token, error)
	DeleteByUserAndType(ctx context.Context, userID uuid.UUID, typ Type) error
	Delete(ctx context.Context, id uuid.UUID) error
	Save(ctx context.Context, t *Token) error
	TouchUpdatedAt(ctx context.Context, id uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository on postgres.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository creates a postgres-backed token repository.
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

const tokenColumns = `id, value, extra_value, user_id, type, client_ip, device_id,
	user_agent_info, suspicious, extra, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, t *Token) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.UserAgentInfo == nil {
		t.UserAgentInfo = map[string]interface{}{}
	}
	if t.Extra == nil {
		t.Extra = map[string]interface{}{}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Value, utils.ToNullString(t.ExtraValue), t.UserID, string(t.Type),
		t.ClientIp, utils.ToNullString(t.DeviceID), t.UserAgentInfo,
		t.Suspicious, t.Extra, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByTypeAndValueWithUser(ctx context.Context, typ Type, value string) (*Token, error) {
	row := r.db.QueryRow(ctx, `
		SELECT t.id, t.value, t.extra_value, t.user_id, t.type, t.client_ip,
			t.device_id, t.user_agent_info, t.suspicious, t.extra,
			t.created_at, t.updated_at,
			u.id, u.email, u.password, u.first_name, u.last_name, u.username,
			u.avatar, u.terms_version, u.two_factor, u.is_active,
			u.verify_email, u.count_login_failed, u.created_at, u.updated_at
		FROM tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.type = $1 AND t.value = $2
		LIMIT 1`,
		string(typ), value,
	)

	var t Token
	var owner user.User
	var extraValue, deviceID *string
	var firstName, lastName, username, avatar, termsVersion *string

	err := row.Scan(
		&t.ID, &t.Value, &extraValue, &t.UserID, &t.Type, &t.ClientIp,
		&deviceID, &t.UserAgentInfo, &t.Suspicious, &t.Extra,
		&t.CreatedAt, &t.UpdatedAt,
		&owner.ID, &owner.Email, &owner.Password, &firstName, &lastName,
		&username, &avatar, &termsVersion, &owner.TwoFactor, &owner.IsActive,
		&owner.VerifyEmail, &owner.CountLoginFailed, &owner.CreatedAt, &owner.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	t.ExtraValue = derefString(extraValue)
	t.DeviceID = derefString(deviceID)
	owner.FirstName = derefString(firstName)
	owner.LastName = derefString(lastName)
	owner.Username = derefString(username)
	owner.Avatar = derefString(avatar)
	owner.TermsVersion = derefString(termsVersion)
	t.User = &owner
	return &t, nil
}

func (r *PostgresRepository) FindByUserAndType(ctx context.Context, userID uuid.UUID, typ Type) ([]Token, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at`,
		userID, string(typ),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		var extraValue, deviceID *string
		err := rows.Scan(
			&t.ID, &t.Value, &extraValue, &t.UserID, &t.Type, &t.ClientIp,
			&deviceID, &t.UserAgentInfo, &t.Suspicious, &t.Extra,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		t.ExtraValue = derefString(extraValue)
		t.DeviceID = derefString(deviceID)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *PostgresRepository) DeleteByUserAndType(ctx context.Context, userID uuid.UUID, typ Type) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM tokens
		WHERE user_id = $1 AND type = $2`,
		userID, string(typ),
	)
	if err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, t *Token) error {
	t.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE tokens
		SET value = $2, extra_value = $3, client_ip = $4, device_id = $5,
			user_agent_info = $6, suspicious = $7, extra = $8, updated_at = $9
		WHERE id = $1`,
		t.ID, t.Value, utils.ToNullString(t.ExtraValue), t.ClientIp,
		utils.ToNullString(t.DeviceID), t.UserAgentInfo, t.Suspicious, t.Extra,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("token %s not found", t.ID)
	}
	return nil
}

// TouchUpdatedAt forces updated_at forward even when nothing else changed,
// keeping a session's last-seen time accurate.
func (r *PostgresRepository) TouchUpdatedAt(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tokens SET updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to touch token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("token %s not found", id)
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

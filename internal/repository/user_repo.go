package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mailpilot/internal/model"
	"mailpilot/pkg/secret"
)

const userColumns = `id, email, name, access_token, refresh_token, token_expiry, created_at, updated_at`

// UserRepository stores mailbox owners. OAuth tokens are sealed before they
// reach the database and opened on the way out.
type UserRepository struct {
	db     DBTX
	sealer secret.Sealer
}

func NewUserRepository(db DBTX, sealer secret.Sealer) *UserRepository {
	if sealer == nil {
		sealer = secret.Plain{}
	}
	return &UserRepository{db: db, sealer: sealer}
}

// Upsert creates the user or refreshes name and tokens of an existing one.
// An empty refresh token keeps the stored one; providers only send it on first consent.
func (r *UserRepository) Upsert(ctx context.Context, u *model.User) (*model.User, error) {
	access, err := r.sealer.Seal(u.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.sealer.Seal(u.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("seal refresh token: %w", err)
	}

	query := `
		INSERT INTO users (email, name, access_token, refresh_token, token_expiry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			name          = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			access_token  = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE users.refresh_token END,
			token_expiry  = EXCLUDED.token_expiry,
			updated_at    = NOW()
		RETURNING ` + userColumns

	return r.scanUser(r.db.QueryRow(ctx, query, u.Email, u.Name, access, refresh, u.TokenExpiry))
}

// UpdateTokens stores refreshed tokens. An empty refresh token keeps the stored one.
func (r *UserRepository) UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string, expiry *time.Time) error {
	access, err := r.sealer.Seal(accessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.sealer.Seal(refreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE users SET
			access_token  = $2,
			refresh_token = CASE WHEN $3::text <> '' THEN $3::text ELSE refresh_token END,
			token_expiry  = $4,
			updated_at    = NOW()
		WHERE id = $1
	`, userID, access, refresh, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// List returns every user, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListWithTokens returns users that completed OAuth.
func (r *UserRepository) ListWithTokens(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users
		WHERE access_token <> '' OR refresh_token <> '' ORDER BY id`)
}

func (r *UserRepository) list(ctx context.Context, query string) ([]model.User, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) scanUser(row pgx.Row) (*model.User, error) {
	var (
		u               model.User
		access, refresh string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &access, &refresh, &u.TokenExpiry, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if u.AccessToken, err = r.sealer.Open(access); err != nil {
		return nil, fmt.Errorf("open access token for user %d: %w", u.ID, err)
	}
	if u.RefreshToken, err = r.sealer.Open(refresh); err != nil {
		return nil, fmt.Errorf("open refresh token for user %d: %w", u.ID, err)
	}
	return &u, nil
}

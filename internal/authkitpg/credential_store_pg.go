package authkitpg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/evently/internal/authkit"
)

const uniqueViolationCode = "23505"

// PostgresCredentialStore persists users and their refresh token hash with raw SQL over pgx.
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialStore constructs a Postgres store. Call RunMigrations first.
func NewPostgresCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool}
}

// FindUserByEmail looks up a user by normalized email.
func (store *PostgresCredentialStore) FindUserByEmail(ctx context.Context, email string) (authkit.User, error) {
	normalized := authkit.NormalizeEmail(email)
	if normalized == "" {
		return authkit.User{}, fmt.Errorf("credential_store.find_by_email.pgx: %w", authkit.ErrEmptyEmail)
	}
	return store.scanUser("credential_store.find_by_email.pgx", store.pool.QueryRow(ctx, `
SELECT id, email, password_hash, COALESCE(refresh_token_hash, '')
FROM users
WHERE email = $1
`, normalized))
}

// FindUserByID looks up a user by primary key.
func (store *PostgresCredentialStore) FindUserByID(ctx context.Context, userID uint) (authkit.User, error) {
	return store.scanUser("credential_store.find_by_id.pgx", store.pool.QueryRow(ctx, `
SELECT id, email, password_hash, COALESCE(refresh_token_hash, '')
FROM users
WHERE id = $1
`, int64(userID)))
}

// CreateUser inserts a user with a bcrypt password hash.
func (store *PostgresCredentialStore) CreateUser(ctx context.Context, email string, passwordHash string) (authkit.User, error) {
	normalized := authkit.NormalizeEmail(email)
	if normalized == "" {
		return authkit.User{}, fmt.Errorf("credential_store.create.pgx: %w", authkit.ErrEmptyEmail)
	}
	var userID int64
	insertErr := store.pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash)
VALUES ($1, $2)
RETURNING id
`, normalized, passwordHash).Scan(&userID)
	if insertErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(insertErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			return authkit.User{}, fmt.Errorf("credential_store.create.pgx: %w", authkit.ErrEmailTaken)
		}
		return authkit.User{}, fmt.Errorf("credential_store.create.pgx: %w", insertErr)
	}
	return authkit.User{ID: uint(userID), Email: normalized, PasswordHash: passwordHash}, nil
}

// StoreRefreshTokenHash overwrites the stored hash unconditionally.
func (store *PostgresCredentialStore) StoreRefreshTokenHash(ctx context.Context, userID uint, refreshTokenHash string) error {
	tag, err := store.pool.Exec(ctx, `
UPDATE users
SET refresh_token_hash = $1, updated_at = now()
WHERE id = $2
`, refreshTokenHash, int64(userID))
	if err != nil {
		return fmt.Errorf("credential_store.store_hash.pgx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credential_store.store_hash.pgx: %w", authkit.ErrUserNotFound)
	}
	return nil
}

// SwapRefreshTokenHash replaces the hash only while it still equals expectedHash.
func (store *PostgresCredentialStore) SwapRefreshTokenHash(ctx context.Context, userID uint, expectedHash string, newHash string) error {
	if expectedHash == "" {
		return fmt.Errorf("credential_store.swap_hash.pgx: %w", authkit.ErrRefreshTokenMismatch)
	}
	tag, err := store.pool.Exec(ctx, `
UPDATE users
SET refresh_token_hash = $1, updated_at = now()
WHERE id = $2 AND refresh_token_hash = $3
`, newHash, int64(userID), expectedHash)
	if err != nil {
		return fmt.Errorf("credential_store.swap_hash.pgx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credential_store.swap_hash.pgx: %w", authkit.ErrRefreshTokenMismatch)
	}
	return nil
}

// ClearRefreshTokenHash ends the session. Clearing an absent session is a no-op.
func (store *PostgresCredentialStore) ClearRefreshTokenHash(ctx context.Context, userID uint) error {
	_, err := store.pool.Exec(ctx, `
UPDATE users
SET refresh_token_hash = NULL, updated_at = now()
WHERE id = $1
`, int64(userID))
	if err != nil {
		return fmt.Errorf("credential_store.clear_hash.pgx: %w", err)
	}
	return nil
}

func (store *PostgresCredentialStore) scanUser(operation string, row pgx.Row) (authkit.User, error) {
	var (
		userID int64
		user   authkit.User
	)
	if err := row.Scan(&userID, &user.Email, &user.PasswordHash, &user.RefreshTokenHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authkit.User{}, fmt.Errorf("%s: %w", operation, authkit.ErrUserNotFound)
		}
		return authkit.User{}, fmt.Errorf("%s: %w", operation, err)
	}
	user.ID = uint(userID)
	return user, nil
}

var _ authkit.CredentialStore = (*PostgresCredentialStore)(nil)

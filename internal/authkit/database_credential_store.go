package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DatabaseCredentialStore persists users and their refresh token hash using GORM.
type DatabaseCredentialStore struct {
	db *gorm.DB
}

type userRecord struct {
	ID               uint    `gorm:"column:id;primaryKey"`
	Email            string  `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash     string  `gorm:"column:password_hash;not null"`
	RefreshTokenHash *string `gorm:"column:refresh_token_hash"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (userRecord) TableName() string {
	return "users"
}

func (record userRecord) toUser() User {
	user := User{
		ID:           record.ID,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
	}
	if record.RefreshTokenHash != nil {
		user.RefreshTokenHash = *record.RefreshTokenHash
	}
	return user
}

// NewDatabaseCredentialStore migrates the users table on the shared GORM handle.
func NewDatabaseCredentialStore(ctx context.Context, db *gorm.DB) (*DatabaseCredentialStore, error) {
	if db == nil {
		return nil, errors.New("credential_store.open: nil database")
	}
	if migrateErr := db.WithContext(ctx).AutoMigrate(&userRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("credential_store.migrate: %w", migrateErr)
	}
	return &DatabaseCredentialStore{db: db}, nil
}

// CreateUser inserts a user with an already hashed password.
func (store *DatabaseCredentialStore) CreateUser(ctx context.Context, email string, passwordHash string) (User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return User{}, fmt.Errorf("credential_store.create: %w", ErrEmptyEmail)
	}
	var existing int64
	if err := store.db.WithContext(ctx).Model(&userRecord{}).Where("email = ?", normalized).Count(&existing).Error; err != nil {
		return User{}, fmt.Errorf("credential_store.create: %w", err)
	}
	if existing > 0 {
		return User{}, fmt.Errorf("credential_store.create: %w", ErrEmailTaken)
	}
	record := userRecord{Email: normalized, PasswordHash: passwordHash}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, fmt.Errorf("credential_store.create: %w", ErrEmailTaken)
		}
		return User{}, fmt.Errorf("credential_store.create: %w", err)
	}
	return record.toUser(), nil
}

// FindUserByEmail locates a user by normalized email.
func (store *DatabaseCredentialStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return User{}, fmt.Errorf("credential_store.find_by_email: %w", ErrEmptyEmail)
	}
	var record userRecord
	err := store.db.WithContext(ctx).Where("email = ?", normalized).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, fmt.Errorf("credential_store.find_by_email: %w", ErrUserNotFound)
		}
		return User{}, fmt.Errorf("credential_store.find_by_email: %w", err)
	}
	return record.toUser(), nil
}

// FindUserByID locates a user by primary key.
func (store *DatabaseCredentialStore) FindUserByID(ctx context.Context, userID uint) (User, error) {
	var record userRecord
	err := store.db.WithContext(ctx).Where("id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, fmt.Errorf("credential_store.find_by_id: %w", ErrUserNotFound)
		}
		return User{}, fmt.Errorf("credential_store.find_by_id: %w", err)
	}
	return record.toUser(), nil
}

// StoreRefreshTokenHash overwrites the stored hash for the user.
func (store *DatabaseCredentialStore) StoreRefreshTokenHash(ctx context.Context, userID uint, refreshTokenHash string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", refreshTokenHash)
	if result.Error != nil {
		return fmt.Errorf("credential_store.store_hash: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("credential_store.store_hash: %w", ErrUserNotFound)
	}
	return nil
}

// SwapRefreshTokenHash performs a single-row conditional update; a concurrent
// rotation that already replaced expectedHash leaves zero rows affected.
func (store *DatabaseCredentialStore) SwapRefreshTokenHash(ctx context.Context, userID uint, expectedHash string, newHash string) error {
	if expectedHash == "" {
		return fmt.Errorf("credential_store.swap_hash: %w", ErrRefreshTokenMismatch)
	}
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ? AND refresh_token_hash = ?", userID, expectedHash).
		Update("refresh_token_hash", newHash)
	if result.Error != nil {
		return fmt.Errorf("credential_store.swap_hash: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("credential_store.swap_hash: %w", ErrRefreshTokenMismatch)
	}
	return nil
}

// ClearRefreshTokenHash sets the stored hash to NULL.
func (store *DatabaseCredentialStore) ClearRefreshTokenHash(ctx context.Context, userID uint) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", gorm.Expr("NULL"))
	if result.Error != nil {
		return fmt.Errorf("credential_store.clear_hash: %w", result.Error)
	}
	return nil
}

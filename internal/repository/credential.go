package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/ordergazer/internal/models"
)

// CredentialRepository 凭据仓库，独占 credentials 表的写入
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository 创建凭据仓库
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get 读取持久化凭据，不存在时返回 (nil, nil)
func (r *CredentialRepository) Get(ctx context.Context) (*models.Credential, error) {
	query := `
		SELECT access_token, refresh_token, expires_at, created_at, updated_at
		FROM credentials WHERE id = 1
	`
	cred := &models.Credential{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred.AccessToken == "" || cred.RefreshToken == "" || cred.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: credential row missing fields", ErrCorruptState)
	}
	return cred, nil
}

// Replace 整体替换持久化凭据（单行 upsert，对崩溃原子）
func (r *CredentialRepository) Replace(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO credentials (id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	_, err := r.db.Pool.Exec(ctx, query,
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresAt,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

// Clear 删除持久化凭据，幂等
func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCorruptState 持久化数据无法解析
// 不做自动修复：自动修复可能悄悄毁掉历史，恢复应由人工重置
var ErrCorruptState = errors.New("corrupt persisted state")

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateCredentials,
		migrationCreateOrderSnapshots,
		migrationCreateOrderHistory,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL

// credentials 只保留一行：单账户系统，替换式写入
const migrationCreateCredentials = `
CREATE TABLE IF NOT EXISTS credentials (
    id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

// 每个订单只保留一份当前快照，整体替换、从不合并
const migrationCreateOrderSnapshots = `
CREATE TABLE IF NOT EXISTS order_snapshots (
    order_ref VARCHAR(64) PRIMARY KEY,
    document JSONB NOT NULL,
    captured_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`

// 只追加的变更台账，一行一个变更组
const migrationCreateOrderHistory = `
CREATE TABLE IF NOT EXISTS order_history (
    id BIGSERIAL PRIMARY KEY,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    changes JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_history_occurred_at ON order_history(occurred_at);
`

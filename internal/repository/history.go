package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/langchou/ordergazer/internal/models"
)

// HistoryRepository 变更台账仓库，独占 order_history 表的写入
// 只追加：已写入的变更组从不修改或重排
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository 创建台账仓库
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append 追加一个变更组；空变更不落库
// 单条 INSERT 写整组，不会出现写了一半的组
func (r *HistoryRepository) Append(ctx context.Context, occurredAt time.Time, changes []models.ChangeRecord) error {
	if len(changes) == 0 {
		return nil
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	query := `INSERT INTO order_history (occurred_at, changes) VALUES ($1, $2)`
	if _, err := r.db.Pool.Exec(ctx, query, occurredAt, payload); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ReadAll 按写入顺序（最早在前）返回全部变更组
func (r *HistoryRepository) ReadAll(ctx context.Context) ([]*models.HistoryEntry, error) {
	query := `SELECT id, occurred_at, changes FROM order_history ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		entry := &models.HistoryEntry{}
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.OccurredAt, &payload); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Changes); err != nil {
			return nil, fmt.Errorf("%w: history entry %d: %v", ErrCorruptState, entry.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/ordergazer/internal/models"
)

// SnapshotRepository 订单快照仓库，独占 order_snapshots 表的写入
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository 创建快照仓库
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Current 读取某订单的当前快照，不存在时返回 (nil, nil)
func (r *SnapshotRepository) Current(ctx context.Context, orderRef string) (*models.OrderSnapshot, error) {
	query := `
		SELECT order_ref, document, captured_at
		FROM order_snapshots WHERE order_ref = $1
	`
	snap := &models.OrderSnapshot{}
	var document []byte
	err := r.db.Pool.QueryRow(ctx, query, orderRef).Scan(&snap.OrderRef, &document, &snap.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal(document, &snap.Fields); err != nil {
		return nil, fmt.Errorf("%w: snapshot document for %s: %v", ErrCorruptState, orderRef, err)
	}
	return snap, nil
}

// Replace 无条件覆盖某订单的当前快照（单语句 upsert，对崩溃原子）
func (r *SnapshotRepository) Replace(ctx context.Context, snap *models.OrderSnapshot) error {
	document, err := json.Marshal(snap.Fields)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO order_snapshots (order_ref, document, captured_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_ref) DO UPDATE SET
			document = EXCLUDED.document,
			captured_at = EXCLUDED.captured_at
	`
	if _, err := r.db.Pool.Exec(ctx, query, snap.OrderRef, document, snap.CapturedAt); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Delete 删除某订单的当前快照，幂等
func (r *SnapshotRepository) Delete(ctx context.Context, orderRef string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM order_snapshots WHERE order_ref = $1`, orderRef); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// List 列出所有订单的当前快照
func (r *SnapshotRepository) List(ctx context.Context) ([]*models.OrderSnapshot, error) {
	query := `
		SELECT order_ref, document, captured_at
		FROM order_snapshots ORDER BY order_ref
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.OrderSnapshot
	for rows.Next() {
		snap := &models.OrderSnapshot{}
		var document []byte
		if err := rows.Scan(&snap.OrderRef, &document, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(document, &snap.Fields); err != nil {
			return nil, fmt.Errorf("%w: snapshot document for %s: %v", ErrCorruptState, snap.OrderRef, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

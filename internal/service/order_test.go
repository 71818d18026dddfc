package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/ordergazer/internal/api/tesla"
	"github.com/langchou/ordergazer/internal/config"
	"github.com/langchou/ordergazer/internal/models"
	"github.com/langchou/ordergazer/internal/state"
)

// fakeFetcher 可编程的订单数据源
type fakeFetcher struct {
	orders  []map[string]any
	details map[string]map[string]any
	err     error
}

func (f *fakeFetcher) FetchOrders(ctx context.Context, accessToken string) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

func (f *fakeFetcher) FetchOrderDetails(ctx context.Context, accessToken, orderRef string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.details[orderRef], nil
}

// fakeCredentials 固定凭据来源
type fakeCredentials struct {
	err error
}

func (f *fakeCredentials) GetValid(ctx context.Context) (*models.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Credential{AccessToken: "at"}, nil
}

// memSnapshots 内存快照存储
type memSnapshots struct {
	snaps map[string]*models.OrderSnapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{snaps: make(map[string]*models.OrderSnapshot)}
}

func (m *memSnapshots) Current(ctx context.Context, orderRef string) (*models.OrderSnapshot, error) {
	snap, ok := m.snaps[orderRef]
	if !ok {
		return nil, nil
	}
	return snap, nil
}

func (m *memSnapshots) Replace(ctx context.Context, snap *models.OrderSnapshot) error {
	m.snaps[snap.OrderRef] = snap
	return nil
}

func (m *memSnapshots) Delete(ctx context.Context, orderRef string) error {
	delete(m.snaps, orderRef)
	return nil
}

func (m *memSnapshots) List(ctx context.Context) ([]*models.OrderSnapshot, error) {
	var out []*models.OrderSnapshot
	for _, s := range m.snaps {
		out = append(out, s)
	}
	return out, nil
}

// memHistory 内存变更台账
type memHistory struct {
	entries []*models.HistoryEntry
}

func (m *memHistory) Append(ctx context.Context, occurredAt time.Time, changes []models.ChangeRecord) error {
	if len(changes) == 0 {
		return nil
	}
	m.entries = append(m.entries, &models.HistoryEntry{
		ID:         int64(len(m.entries) + 1),
		OccurredAt: occurredAt,
		Changes:    changes,
	})
	return nil
}

func (m *memHistory) ReadAll(ctx context.Context) ([]*models.HistoryEntry, error) {
	return m.entries, nil
}

func orderDoc(ref, status, vin string) (map[string]any, map[string]any) {
	order := map[string]any{
		"referenceNumber": ref,
		"orderStatus":     status,
		"modelCode":       "my",
	}
	if vin != "" {
		order["vin"] = vin
	}
	details := map[string]any{
		"tasks": map[string]any{
			"scheduling": map[string]any{
				"deliveryWindowDisplay": "June 2024",
			},
		},
	}
	return order, details
}

func newTestService(f *fakeFetcher, creds *fakeCredentials, snaps *memSnapshots, hist *memHistory) *OrderService {
	cfg := &config.Config{PollInterval: time.Minute}
	return NewOrderService(cfg, zap.NewNop(), f, creds, snaps, hist, nil)
}

func TestPollOnceBaseline(t *testing.T) {
	order, details := orderDoc("RN001", "BOOKED", "")
	fetcher := &fakeFetcher{
		orders:  []map[string]any{order},
		details: map[string]map[string]any{"RN001": details},
	}
	snaps := newMemSnapshots()
	hist := &memHistory{}
	svc := newTestService(fetcher, &fakeCredentials{}, snaps, hist)

	changed, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 首次拉取建立基线：快照落库、无变更记录
	assert.False(t, changed)
	assert.Empty(t, hist.entries)
	assert.Contains(t, snaps.snaps, "RN001")
	assert.Equal(t, StatusNoBaseline, svc.Status())
}

func TestPollOnceUnchanged(t *testing.T) {
	order, details := orderDoc("RN001", "BOOKED", "")
	fetcher := &fakeFetcher{
		orders:  []map[string]any{order},
		details: map[string]map[string]any{"RN001": details},
	}
	snaps := newMemSnapshots()
	hist := &memHistory{}
	svc := newTestService(fetcher, &fakeCredentials{}, snaps, hist)

	_, err := svc.PollOnce(context.Background())
	require.NoError(t, err)
	changed, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, changed)
	assert.Empty(t, hist.entries)
	assert.Equal(t, StatusUnchanged, svc.Status())
}

func TestPollOnceDetectsChanges(t *testing.T) {
	order, details := orderDoc("RN001", "BOOKED", "")
	fetcher := &fakeFetcher{
		orders:  []map[string]any{order},
		details: map[string]map[string]any{"RN001": details},
	}
	snaps := newMemSnapshots()
	hist := &memHistory{}
	svc := newTestService(fetcher, &fakeCredentials{}, snaps, hist)

	_, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	// VIN 下发
	order2, details2 := orderDoc("RN001", "BOOKED", "5YJ3E7EB")
	fetcher.orders = []map[string]any{order2}
	fetcher.details["RN001"] = details2

	changed, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, StatusChanged, svc.Status())
	require.Len(t, hist.entries, 1)
	require.Len(t, hist.entries[0].Changes, 1)

	rec := hist.entries[0].Changes[0]
	// 字段路径带订单参考号前缀
	assert.Equal(t, "orders.RN001.order.vin", rec.FieldPath)
	assert.Nil(t, rec.OldValue)
	require.NotNil(t, rec.NewValue)
	assert.Equal(t, "5YJ3E7EB", *rec.NewValue)

	// 生命周期状态机随之推进
	assert.Equal(t, state.StateVinAssigned, svc.LifecycleStates()["RN001"])
}

func TestPollOnceHistoryAccumulatesInOrder(t *testing.T) {
	order, details := orderDoc("RN001", "BOOKED", "")
	fetcher := &fakeFetcher{
		orders:  []map[string]any{order},
		details: map[string]map[string]any{"RN001": details},
	}
	snaps := newMemSnapshots()
	hist := &memHistory{}
	svc := newTestService(fetcher, &fakeCredentials{}, snaps, hist)

	_, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 周期 2：状态变化
	o2, d2 := orderDoc("RN001", "VIN_ASSIGNED", "5YJ3")
	fetcher.orders = []map[string]any{o2}
	fetcher.details["RN001"] = d2
	_, err = svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 周期 3：无变化
	_, err = svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 周期 4：再次变化
	o4, d4 := orderDoc("RN001", "DELIVERED", "5YJ3")
	fetcher.orders = []map[string]any{o4}
	fetcher.details["RN001"] = d4
	_, err = svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 台账只包含产生了变更的周期，按发生顺序排列
	entries, err := hist.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "orders.RN001.order.orderStatus", entries[0].Changes[0].FieldPath)
	assert.Equal(t, "orders.RN001.order.orderStatus", entries[1].Changes[0].FieldPath)
}

func TestPollOnceMultipleOrders(t *testing.T) {
	o1, d1 := orderDoc("RN001", "BOOKED", "")
	o2, d2 := orderDoc("RN002", "BOOKED", "")
	fetcher := &fakeFetcher{
		orders:  []map[string]any{o1, o2},
		details: map[string]map[string]any{"RN001": d1, "RN002": d2},
	}
	snaps := newMemSnapshots()
	hist := &memHistory{}
	svc := newTestService(fetcher, &fakeCredentials{}, snaps, hist)

	_, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 只有一个订单变化也落成单独一组
	o2b, d2b := orderDoc("RN002", "VIN_ASSIGNED", "5YJ3")
	fetcher.orders = []map[string]any{o1, o2b}
	fetcher.details["RN002"] = d2b

	changed, err := svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, hist.entries, 1)
	for _, rec := range hist.entries[0].Changes {
		assert.Contains(t, rec.FieldPath, "orders.RN002.")
	}
}

func TestPollOnceOrderRemoved(t *testing.T) {
	order, details := orderDoc("RN001", "BOOKED", "")
	fetcher := &fakeFetcher{
		orders:  []map[string]any{order},
		details: map[string]map[string]any{"RN001": details},
	}
	snaps := newMemSnapshots()
	hist := &memHistory{}
	svc := newTestService(fetcher, &fakeCredentials{}, snaps, hist)

	_, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 订单从列表中消失
	fetcher.orders = nil

	changed, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	// 所有字段按删除记账：旧值保留，新值缺失
	assert.True(t, changed)
	assert.Equal(t, StatusChanged, svc.Status())
	require.Len(t, hist.entries, 1)
	require.NotEmpty(t, hist.entries[0].Changes)
	for _, rec := range hist.entries[0].Changes {
		assert.Contains(t, rec.FieldPath, "orders.RN001.")
		assert.NotNil(t, rec.OldValue)
		assert.Nil(t, rec.NewValue)
	}

	// 快照和生命周期状态机一并移除
	cur, err := snaps.Current(context.Background(), "RN001")
	require.NoError(t, err)
	assert.Nil(t, cur)
	assert.NotContains(t, svc.LifecycleStates(), "RN001")
}

func TestPollOnceReauthRequired(t *testing.T) {
	svc := newTestService(&fakeFetcher{}, &fakeCredentials{
		err: fmt.Errorf("%w: no credential stored", tesla.ErrReauthRequired),
	}, newMemSnapshots(), &memHistory{})

	_, err := svc.PollOnce(context.Background())
	assert.ErrorIs(t, err, tesla.ErrReauthRequired)
}

func TestPollOnceEmptyDetailsIsTransient(t *testing.T) {
	order, _ := orderDoc("RN001", "BOOKED", "")
	fetcher := &fakeFetcher{
		orders:  []map[string]any{order},
		details: map[string]map[string]any{"RN001": {}},
	}
	svc := newTestService(fetcher, &fakeCredentials{}, newMemSnapshots(), &memHistory{})

	_, err := svc.PollOnce(context.Background())
	assert.ErrorIs(t, err, tesla.ErrTransient)
}

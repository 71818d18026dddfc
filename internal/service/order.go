package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/ordergazer/internal/api/tesla"
	"github.com/langchou/ordergazer/internal/config"
	"github.com/langchou/ordergazer/internal/diff"
	"github.com/langchou/ordergazer/internal/models"
	"github.com/langchou/ordergazer/internal/state"
	"github.com/langchou/ordergazer/pkg/ws"
)

// 上次拉取周期的结论（对应 /api/orders/status 探针）
const (
	StatusNoBaseline = -1 // 尚无可比较的基线
	StatusUnchanged  = 0  // 有基线且无变更
	StatusChanged    = 1  // 检测到变更
)

// OrderFetcher 订单拉取端口，由 tesla.Client 实现
// HTTP 传输、请求头和端点形状都属于实现方，这里只依赖返回的嵌套 JSON 文档
type OrderFetcher interface {
	FetchOrders(ctx context.Context, accessToken string) ([]map[string]any, error)
	FetchOrderDetails(ctx context.Context, accessToken, orderRef string) (map[string]any, error)
}

// CredentialSource 凭据来源，由 auth.TokenStore 实现
type CredentialSource interface {
	GetValid(ctx context.Context) (*models.Credential, error)
}

// SnapshotStore 快照存取端口，由 repository.SnapshotRepository 实现
type SnapshotStore interface {
	Current(ctx context.Context, orderRef string) (*models.OrderSnapshot, error)
	Replace(ctx context.Context, snap *models.OrderSnapshot) error
	Delete(ctx context.Context, orderRef string) error
	List(ctx context.Context) ([]*models.OrderSnapshot, error)
}

// HistoryLog 变更台账端口，由 repository.HistoryRepository 实现
type HistoryLog interface {
	Append(ctx context.Context, occurredAt time.Time, changes []models.ChangeRecord) error
	ReadAll(ctx context.Context) ([]*models.HistoryEntry, error)
}

// OrderService 订单跟踪服务：拉取 -> 比对 -> 记账 -> 替换快照 -> 广播
type OrderService struct {
	cfg          *config.Config
	logger       *zap.Logger
	fetcher      OrderFetcher
	credentials  CredentialSource
	snapRepo     SnapshotStore
	histRepo     HistoryLog
	stateManager *state.Manager
	wsHub        *ws.Hub

	mu         sync.Mutex
	stopCh     chan struct{}
	wg         sync.WaitGroup
	running    bool
	paused     bool // refresh token 失效后暂停，等待新的交互式认证
	lastStatus int

	now func() time.Time
}

// NewOrderService 创建订单跟踪服务
func NewOrderService(
	cfg *config.Config,
	logger *zap.Logger,
	fetcher OrderFetcher,
	credentials CredentialSource,
	snapRepo SnapshotStore,
	histRepo HistoryLog,
	wsHub *ws.Hub,
) *OrderService {
	svc := &OrderService{
		cfg:         cfg,
		logger:      logger,
		fetcher:     fetcher,
		credentials: credentials,
		snapRepo:    snapRepo,
		histRepo:    histRepo,
		wsHub:       wsHub,
		lastStatus:  StatusNoBaseline,
		now:         time.Now,
	}
	svc.stateManager = state.NewManager(svc.onLifecycleTransition)
	return svc
}

// Start 启动轮询
func (s *OrderService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Order service already running, skipping start")
		return nil
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting order service", zap.Duration("interval", s.cfg.PollInterval))

	s.wg.Add(1)
	go s.pollLoop(ctx)

	return nil
}

// Stop 停止轮询
func (s *OrderService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping order service")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Order service stopped")
}

// Resume 恢复轮询（交互式认证成功后由 HTTP 层调用）
func (s *OrderService) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.logger.Info("Order polling resumed after re-authentication")
}

// Status 上次拉取周期的结论：-1 无基线 / 0 无变更 / 1 有变更
func (s *OrderService) Status() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

// LifecycleStates 所有订单的生命周期状态
func (s *OrderService) LifecycleStates() map[string]string {
	return s.stateManager.States()
}

// pollLoop 轮询循环，周期之间串行，不存在并发的拉取/比对/落库
func (s *OrderService) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	// 启动时立即拉取一次
	s.runCycle(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle 执行一个周期并分类处理失败
func (s *OrderService) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		s.logger.Debug("Polling paused, waiting for re-authentication")
		return
	}
	s.mu.Unlock()

	if _, err := s.PollOnce(ctx); err != nil {
		switch {
		case errors.Is(err, tesla.ErrReauthRequired):
			// 不自动重试：refresh token 已失效，必须重新交互式登录
			s.mu.Lock()
			s.paused = true
			s.mu.Unlock()
			s.logger.Warn("Re-authentication required, polling paused", zap.Error(err))
		case errors.Is(err, tesla.ErrTransient):
			s.logger.Warn("Transient failure, cycle skipped", zap.Error(err))
		default:
			s.logger.Error("Poll cycle failed", zap.Error(err))
		}
	}
}

// PollOnce 执行一次完整的 拉取->比对->记账->替换 周期
// 返回本周期是否检测到变更
func (s *OrderService) PollOnce(ctx context.Context) (bool, error) {
	cred, err := s.credentials.GetValid(ctx)
	if err != nil {
		return false, err
	}

	orders, err := s.fetcher.FetchOrders(ctx, cred.AccessToken)
	if err != nil {
		return false, err
	}

	occurredAt := s.now()
	var group []models.ChangeRecord
	hadBaseline := false
	seen := make(map[string]struct{}, len(orders))

	for _, order := range orders {
		ref, _ := order["referenceNumber"].(string)
		if ref == "" {
			s.logger.Warn("Order without reference number, skipping")
			continue
		}
		seen[ref] = struct{}{}

		details, err := s.fetcher.FetchOrderDetails(ctx, cred.AccessToken, ref)
		if err != nil {
			return false, err
		}
		if len(details) == 0 || details["tasks"] == nil {
			return false, fmt.Errorf("%w: empty detail response for order %s", tesla.ErrTransient, ref)
		}

		doc := &tesla.DetailedOrder{Order: order, Details: details}
		snapshot := &models.OrderSnapshot{
			OrderRef:   ref,
			Fields:     diff.Flatten(doc.Document()),
			CapturedAt: occurredAt,
		}

		previous, err := s.snapRepo.Current(ctx, ref)
		if err != nil {
			return false, err
		}
		if previous != nil {
			hadBaseline = true
		}

		// 首份快照只建立基线，本身不算变更
		records := diff.Diff(previous, snapshot)
		for _, rec := range records {
			rec.FieldPath = "orders." + ref + "." + rec.FieldPath
			group = append(group, rec)
		}

		if err := s.snapRepo.Replace(ctx, snapshot); err != nil {
			return false, err
		}

		s.advanceLifecycle(ref, previous, snapshot)
	}

	// 列表里消失的订单：所有字段按删除记账，快照与状态机一并移除
	stored, err := s.snapRepo.List(ctx)
	if err != nil {
		return false, err
	}
	for _, prev := range stored {
		if _, ok := seen[prev.OrderRef]; ok {
			continue
		}
		hadBaseline = true
		gone := &models.OrderSnapshot{OrderRef: prev.OrderRef, CapturedAt: occurredAt}
		for _, rec := range diff.Diff(prev, gone) {
			rec.FieldPath = "orders." + prev.OrderRef + "." + rec.FieldPath
			group = append(group, rec)
		}
		if err := s.snapRepo.Delete(ctx, prev.OrderRef); err != nil {
			return false, err
		}
		s.stateManager.Remove(prev.OrderRef)
		s.logger.Info("Order disappeared from vendor list", zap.String("order_ref", prev.OrderRef))
	}

	changed := len(group) > 0
	if changed {
		if err := s.histRepo.Append(ctx, occurredAt, group); err != nil {
			return false, err
		}
		if s.wsHub != nil {
			s.wsHub.BroadcastChangeGroup(&models.HistoryEntry{
				OccurredAt: occurredAt,
				Changes:    group,
			})
		}
		s.logger.Info("Order changes detected",
			zap.Int("changes", len(group)),
			zap.Time("occurred_at", occurredAt))
	}

	s.mu.Lock()
	switch {
	case changed:
		s.lastStatus = StatusChanged
	case hadBaseline:
		s.lastStatus = StatusUnchanged
	default:
		s.lastStatus = StatusNoBaseline
	}
	s.mu.Unlock()

	return changed, nil
}

// advanceLifecycle 根据快照推进订单生命周期状态机
func (s *OrderService) advanceLifecycle(ref string, previous, current *models.OrderSnapshot) {
	initial := state.StateBooked
	if previous != nil {
		initial = state.Derive(previous.Fields)
	}

	machine := s.stateManager.GetOrCreate(ref, initial)
	if err := machine.AdvanceTo(state.Derive(current.Fields)); err != nil {
		s.logger.Warn("Lifecycle transition rejected",
			zap.String("order_ref", ref),
			zap.Error(err))
	}
}

// onLifecycleTransition 状态迁移回调：广播给订阅者
func (s *OrderService) onLifecycleTransition(t state.Transition) {
	s.logger.Info("Order lifecycle transition",
		zap.String("order_ref", t.OrderRef),
		zap.String("from", t.From),
		zap.String("to", t.To))
	if s.wsHub != nil {
		s.wsHub.BroadcastLifecycle(t)
	}
}

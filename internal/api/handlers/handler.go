package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/ordergazer/internal/auth"
	"github.com/langchou/ordergazer/internal/optioncodes"
	"github.com/langchou/ordergazer/internal/repository"
	"github.com/langchou/ordergazer/internal/service"
	"github.com/langchou/ordergazer/pkg/ws"
)

// Handler HTTP 处理器
// 展示层只读：除认证入口外，所有接口都不修改核心状态
type Handler struct {
	logger       *zap.Logger
	tokens       *auth.TokenStore
	snapRepo     *repository.SnapshotRepository
	histRepo     *repository.HistoryRepository
	orderService *service.OrderService
	overlay      *optioncodes.Overlay
	wsHub        *ws.Hub
	upgrader     websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	tokens *auth.TokenStore,
	snapRepo *repository.SnapshotRepository,
	histRepo *repository.HistoryRepository,
	orderService *service.OrderService,
	overlay *optioncodes.Overlay,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:       logger,
		tokens:       tokens,
		snapRepo:     snapRepo,
		histRepo:     histRepo,
		orderService: orderService,
		overlay:      overlay,
		wsHub:        wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 认证
		api.GET("/auth/url", h.GetAuthURL)
		api.POST("/auth/exchange", h.ExchangeAuthCode)
		api.DELETE("/auth", h.SignOut)

		// 订单
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/status", h.GetOrderStatus)
		api.GET("/orders/history", h.GetOrderHistory)

		// 选配代码
		api.GET("/options/:code", h.ResolveOptionCode)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/ordergazer/internal/models"
	"github.com/langchou/ordergazer/internal/stores"
)

// ListOrders 当前订单快照的摘要视图
// ?share=1 隐藏订单号和 VIN，时间戳截断到日期，便于公开分享
func (h *Handler) ListOrders(c *gin.Context) {
	share := c.Query("share") == "1"

	snaps, err := h.snapRepo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list snapshots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	lifecycle := h.orderService.LifecycleStates()

	summaries := make([]*models.OrderSummary, 0, len(snaps))
	for _, snap := range snaps {
		summary := h.buildSummary(snap, share)
		summary.LifecycleState = lifecycle[snap.OrderRef]
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// GetOrderStatus 变更探针：-1 无基线 / 0 无变更 / 1 有变更
func (h *Handler) GetOrderStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.orderService.Status()})
}

// GetOrderHistory 变更台账，最早在前
func (h *Handler) GetOrderHistory(c *gin.Context) {
	entries, err := h.histRepo.ReadAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// ResolveOptionCode 解析单个选配代码
func (h *Handler) ResolveOptionCode(c *gin.Context) {
	code := c.Param("code")
	desc, ok := h.overlay.Resolve(code)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown option code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "description": desc})
}

// buildSummary 从扁平化快照组装摘要
func (h *Handler) buildSummary(snap *models.OrderSnapshot, share bool) *models.OrderSummary {
	f := snap.Fields

	summary := &models.OrderSummary{
		Status:              fieldString(f, "order.orderStatus"),
		Model:               fieldString(f, "order.modelCode"),
		ReservationDate:     fieldString(f, "details.tasks.registration.orderDetails.reservationDate"),
		OrderBookedDate:     fieldString(f, "details.tasks.registration.orderDetails.orderBookedDate"),
		ExpectedRegDate:     fieldString(f, "details.tasks.registration.expectedRegDate"),
		EtaToDeliveryCenter: fieldString(f, "details.tasks.finalPayment.data.etaToDeliveryCenter"),
		DeliveryWindow:      fieldString(f, "details.tasks.scheduling.deliveryWindowDisplay"),
		DeliveryAppointment: fieldString(f, "details.tasks.scheduling.apptDateTimeAddressStr"),
		DeliveryCenter:      fieldString(f, "details.tasks.scheduling.deliveryAddressTitle"),
		CapturedAt:          snap.CapturedAt,
	}

	if loc, ok := f["details.tasks.registration.orderDetails.vehicleRoutingLocation"].(float64); ok {
		summary.RoutingLocation = stores.Label(int64(loc))
	}

	if options := fieldString(f, "order.mktOptions"); options != "" {
		summary.Options = h.overlay.Decode(options)
	}

	if share {
		summary.ReservationDate = truncateTimestamp(summary.ReservationDate)
		summary.OrderBookedDate = truncateTimestamp(summary.OrderBookedDate)
		summary.ExpectedRegDate = truncateTimestamp(summary.ExpectedRegDate)
		summary.EtaToDeliveryCenter = truncateTimestamp(summary.EtaToDeliveryCenter)
	} else {
		summary.OrderRef = snap.OrderRef
		summary.VIN = fieldString(f, "order.vin")
	}

	return summary
}

func fieldString(fields map[string]any, path string) string {
	s, _ := fields[path].(string)
	return s
}

// truncateTimestamp 分享模式下把时间戳截断到日期
func truncateTimestamp(ts string) string {
	if i := strings.Index(ts, "T"); i > 0 {
		return ts[:i]
	}
	return ts
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/ordergazer/internal/api/tesla"
)

// GetAuthURL 生成交互式登录 URL
// 登录后浏览器会跳到 "Page Not Found" 页面，把完整 URL 交给 /api/auth/exchange
func (h *Handler) GetAuthURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": h.tokens.BeginAuthorization()})
}

// ExchangeAuthCode 用粘贴的跳转 URL 完成授权码换取
func (h *Handler) ExchangeAuthCode(c *gin.Context) {
	var req struct {
		RedirectURL string `json:"redirect_url" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	cred, err := h.tokens.Exchange(c.Request.Context(), req.RedirectURL)
	if err != nil {
		if errors.Is(err, tesla.ErrInvalidAuthorization) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Redirect URL contains no usable authorization code"})
			return
		}
		h.logger.Error("Failed to exchange authorization code", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Token exchange failed"})
		return
	}

	// 凭据已落盘，恢复被暂停的轮询
	h.orderService.Resume()

	c.JSON(http.StatusOK, gin.H{"expires_at": cred.ExpiresAt})
}

// SignOut 注销：清除持久化凭据
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.tokens.Clear(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear credential", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear credential"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

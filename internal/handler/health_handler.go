package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger ストアの疎通確認
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler ヘルスチェックのハンドラー
type HealthHandler struct {
	store  Pinger
	logger *zap.Logger
}

// NewHealthHandler 新しいHealthHandlerインスタンスを作成
func NewHealthHandler(store Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{store: store, logger: logger}
}

// Healthz GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn("ヘルスチェック失敗", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "platial-atlas"})
}

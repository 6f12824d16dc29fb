package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// HTTPObserver HTTPリクエストの記録先（メトリクス用）
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
	RateLimited()
}

// RequestID リクエストIDを採番してレスポンスヘッダーに付与する
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AccessLog リクエストごとにアクセスログを出力する
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("リクエスト処理失敗", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("リクエスト拒否", fields...)
		default:
			logger.Info("リクエスト完了", fields...)
		}
	}
}

// Metrics ルートごとの件数と所要時間を記録する
func Metrics(observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// IPRateLimiter クライアントIPごとのトークンバケット
// 保持するIP数は上限付きで、古いものから破棄する
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

// NewIPRateLimiter 新しいIPRateLimiterを作成
func NewIPRateLimiter(rps float64, burst, maxClients int) (*IPRateLimiter, error) {
	if burst < 1 {
		burst = 1
	}
	if maxClients <= 0 {
		maxClients = 10000
	}
	limiters, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &IPRateLimiter{
		limiters: limiters,
		rps:      rate.Limit(rps),
		burst:    burst,
	}, nil
}

// Allow 指定IPのリクエストを許可するか
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters.Add(ip, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// RateLimit 上限を超えたクライアントに429を返す
func RateLimit(limiter *IPRateLimiter, observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			if observer != nil {
				observer.RateLimited()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "リクエストが多すぎます。しばらくしてから再度お試しください",
			})
			return
		}
		c.Next()
	}
}

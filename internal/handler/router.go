package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers ルーターに登録するハンドラー群
type Handlers struct {
	Choropleth *ChoroplethHandler
	POIs       *POIsHandler
	Health     *HealthHandler
}

// RouterOptions ルーターの共通ミドルウェア設定
type RouterOptions struct {
	Logger         *zap.Logger
	Observer       HTTPObserver   // nilなら記録しない
	MetricsHandler http.Handler   // nilなら /metrics を公開しない
	RateLimiter    *IPRateLimiter // nilならレート制限なし
}

// NewRouter APIルーターを構築する
func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(logger))
	if opts.Observer != nil {
		r.Use(Metrics(opts.Observer))
	}

	if h.Health != nil {
		r.GET("/healthz", h.Health.Healthz)
	}
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api := r.Group("/api")
	if opts.RateLimiter != nil {
		api.Use(RateLimit(opts.RateLimiter, opts.Observer))
	}
	{
		api.GET("/facets", GetFacets)
		if h.Choropleth != nil {
			api.GET("/tiles/h3", h.Choropleth.GetHexTiles)
			api.GET("/choropleth", h.Choropleth.GetChoropleth)
		}
		if h.POIs != nil {
			api.GET("/poi", h.POIs.ListPOIs)
		}
	}

	return r
}

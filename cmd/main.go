package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"platial-atlas/internal/config"
	"platial-atlas/internal/domain/helper"
	"platial-atlas/internal/domain/service"
	"platial-atlas/internal/handler"
	"platial-atlas/internal/infrastructure/cache"
	"platial-atlas/internal/infrastructure/database"
	"platial-atlas/internal/infrastructure/metrics"
	"platial-atlas/internal/logger"
	"platial-atlas/internal/migration"
	"platial-atlas/internal/repository"
	"platial-atlas/internal/usecase"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガー初期化失敗: %v\n", err)
		os.Exit(1)
	}

	code := serve(cfg, log)
	_ = log.Sync()
	os.Exit(code)
}

// serve サーバーを実行し、プロセスの終了コードを返す
func serve(cfg config.Config, log *zap.Logger) int {
	if err := run(cfg, log); err != nil {
		log.Error("サーバー停止", zap.Error(err))
		return 1
	}
	log.Info("サーバー停止完了")
	return 0
}

func run(cfg config.Config, log *zap.Logger) error {
	defaultBBox, err := helper.ParseBBox(cfg.DefaultBBox)
	if err != nil {
		return fmt.Errorf("DEFAULT_BBOXが不正です: %w", err)
	}

	log.Info("PostgreSQLに接続中...")
	client, err := database.NewPostgreSQLClientWithRetry(cfg.Database, 5, 2*time.Second, log)
	if err != nil {
		return err
	}
	defer client.Close()
	log.Info("✅ PostgreSQL接続成功")

	if cfg.AutoMigrate {
		if err := migration.RunMigrations(client.DB); err != nil {
			return err
		}
		log.Info("✅ マイグレーション完了")
	}

	collectors := metrics.New()

	coveringCache, err := cache.NewCoveringCache(cfg.CoveringCacheSize, cfg.CoveringCacheMaxCells)
	if err != nil {
		return err
	}

	// Repository層
	gridCellsRepo := repository.NewBreakerGridCellsRepository(
		repository.NewPostgresGridCellsRepository(client, cfg.QueryTimeout),
		repository.BreakerConfig{
			FailureThreshold: uint32(cfg.StoreBreakerFailures),
			Timeout:          cfg.StoreBreakerTimeout,
		},
		log,
	)
	poisRepo := repository.NewPostgresPOIsRepository(client)

	// Service / UseCase層
	aggregateService := service.NewHexAggregateService(gridCellsRepo, collectors, log)
	choroplethUseCase := usecase.NewChoroplethUseCase(aggregateService, coveringCache, collectors, cfg.MaxCoveringCells, log)
	poisUseCase := usecase.NewPOIsUseCase(poisRepo, cfg.POIRegionMask)

	// Handler層
	var limiter *handler.IPRateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter, err = handler.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 0)
		if err != nil {
			return err
		}
	}

	gin.SetMode(cfg.GinMode)
	router := handler.NewRouter(handler.Handlers{
		Choropleth: handler.NewChoroplethHandler(choroplethUseCase, cfg.DefaultResolution, defaultBBox),
		POIs:       handler.NewPOIsHandler(poisUseCase, cfg.POIMaxLimit),
		Health:     handler.NewHealthHandler(client, log),
	}, handler.RouterOptions{
		Logger:         log,
		Observer:       collectors,
		MetricsHandler: collectors.Handler(),
		RateLimiter:    limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 サーバー起動", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("シャットダウン中...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

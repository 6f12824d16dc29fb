package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"platial-atlas/internal/application"
	"platial-atlas/internal/config"
	"platial-atlas/internal/infrastructure/database"
	"platial-atlas/internal/logger"
	"platial-atlas/internal/migration"
	"platial-atlas/internal/repository"
)

// h3-assign 未割当POIへの最細セル割り当てと親セルマップの再構築を1回実行する
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガー初期化失敗: %v\n", err)
		os.Exit(1)
	}

	code := run(cfg, log)
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg config.Config, log *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.NewPostgreSQLClientWithRetry(cfg.Database, 3, 2*time.Second, log)
	if err != nil {
		log.Error("PostgreSQL接続失敗", zap.Error(err))
		return 1
	}
	defer client.Close()

	if cfg.AutoMigrate {
		if err := migration.RunMigrations(client.DB); err != nil {
			log.Error("マイグレーション失敗", zap.Error(err))
			return 1
		}
	}

	svc := application.NewH3MaintenanceService(
		repository.NewPostgresParentMapRepository(client, log),
		application.MaintenanceOptions{
			BatchSize:    cfg.AssignBatchSize,
			RefreshViews: cfg.RefreshViews,
		},
		log,
	)

	report, err := svc.Run(ctx)
	if report != nil {
		fields := []zap.Field{
			zap.String("run_id", report.RunID),
			zap.Int("assigned", report.Assigned),
			zap.Int("distinct_cells", report.DistinctCells),
			zap.Any("map_rows", report.MapRows),
			zap.Bool("committed", report.Committed),
			zap.Bool("refreshed", report.Refreshed),
			zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		}
		if err != nil {
			log.Error("❌ 親セルマップ再構築失敗", append(fields, zap.Error(err))...)
			return 1
		}
		log.Info("✅ 親セルマップ再構築完了", fields...)
		return 0
	}
	if err != nil {
		log.Error("❌ 親セルマップ再構築失敗", zap.Error(err))
		return 1
	}
	return 0
}

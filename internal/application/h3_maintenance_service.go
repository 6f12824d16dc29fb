package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"platial-atlas/internal/domain/helper"
	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/repository"
	"platial-atlas/internal/domain/service"
)

// H3MaintenanceService 最細セルの割当と親セルマップの再構築を行うバッチ処理
type H3MaintenanceService interface {
	// Run 未割当POIへのセル割当と全解像度の親セルマップ再構築を1トランザクションで行う
	// エラー時は何もコミットせず、それまでの処理件数をレポートで返す
	Run(ctx context.Context) (*MaintenanceReport, error)
}

// MaintenanceReport バッチ実行結果
type MaintenanceReport struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Assigned      int         // 最細セルを割り当てたPOI数
	DistinctCells int         // 使用中の最細セル数
	MapRows       map[int]int // 解像度ごとの親セルマップ行数
	Committed     bool
	Refreshed     bool
}

// MaintenanceOptions バッチ処理の設定
type MaintenanceOptions struct {
	BatchSize    int
	RefreshViews bool
}

// h3MaintenanceServiceImpl H3MaintenanceServiceの実装
type h3MaintenanceServiceImpl struct {
	repo    repository.ParentMapRepository
	builder *service.ParentLinkBuilder
	opts    MaintenanceOptions
	logger  *zap.Logger

	running sync.Mutex
}

// NewH3MaintenanceService H3MaintenanceServiceの新しいインスタンスを作成
func NewH3MaintenanceService(repo repository.ParentMapRepository, opts MaintenanceOptions, logger *zap.Logger) H3MaintenanceService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &h3MaintenanceServiceImpl{
		repo:    repo,
		builder: service.NewParentLinkBuilder(),
		opts:    opts,
		logger:  logger,
	}
}

func (s *h3MaintenanceServiceImpl) Run(ctx context.Context) (*MaintenanceReport, error) {
	// 同一プロセス内での多重実行を防ぐ（プロセス間はアドバイザリロック）
	if !s.running.TryLock() {
		return nil, model.ErrMaintenanceInProgress
	}
	defer s.running.Unlock()

	report := &MaintenanceReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		MapRows:   make(map[int]int, len(model.CoarserResolutions)),
	}
	log := s.logger.With(zap.String("run_id", report.RunID))
	log.Info("🔄 親セルマップ再構築開始")

	err := s.repo.WithinTx(ctx, func(tx repository.ParentMapTx) error {
		locked, err := tx.TryAdvisoryLock(ctx, model.AdvisoryLockKey)
		if err != nil {
			return fmt.Errorf("アドバイザリロックの取得に失敗: %w", err)
		}
		if !locked {
			return model.ErrMaintenanceInProgress
		}

		if err := tx.EnsureParentMapTables(ctx, model.CoarserResolutions); err != nil {
			return fmt.Errorf("親セルマップテーブルの作成に失敗: %w", err)
		}

		// Step 1: 未割当POIに最細セルを割り当てる
		assigned, err := s.assignFinestCells(ctx, tx, log)
		report.Assigned = assigned
		if err != nil {
			return err
		}

		// Step 2: 使用中の最細セルから各解像度の親セルマップを作り直す
		cells, err := tx.DistinctFinestCells(ctx)
		if err != nil {
			return fmt.Errorf("最細セル一覧の取得に失敗: %w", err)
		}
		report.DistinctCells = len(cells)

		links, err := s.builder.Build(ctx, cells, model.CoarserResolutions)
		if err != nil {
			return fmt.Errorf("親セル対応の計算に失敗: %w", err)
		}
		for _, res := range model.CoarserResolutions {
			if err := tx.ReplaceParentMap(ctx, res, links[res]); err != nil {
				return fmt.Errorf("r%dの親セルマップ入れ替えに失敗: %w", res, err)
			}
			report.MapRows[res] = len(links[res])
			log.Info("親セルマップ入れ替え完了", zap.Int("res", res), zap.Int("rows", len(links[res])))
		}
		return nil
	})
	if err != nil {
		report.FinishedAt = time.Now()
		if errors.Is(err, model.ErrMaintenanceInProgress) {
			log.Warn("⚠️ 別の再構築が実行中のためスキップ")
		} else {
			log.Error("❌ 親セルマップ再構築に失敗（ロールバック済み）",
				zap.Int("assigned", report.Assigned),
				zap.Error(err),
			)
		}
		return report, err
	}
	report.Committed = true

	if s.opts.RefreshViews {
		if err := s.repo.RefreshAggregates(ctx, model.AllResolutions); err != nil {
			report.FinishedAt = time.Now()
			log.Error("❌ 集計ビューの更新に失敗", zap.Error(err))
			return report, fmt.Errorf("集計ビューの更新に失敗: %w", err)
		}
		report.Refreshed = true
	}

	report.FinishedAt = time.Now()
	log.Info("✅ 親セルマップ再構築完了",
		zap.Int("assigned", report.Assigned),
		zap.Int("distinct_cells", report.DistinctCells),
		zap.Bool("refreshed", report.Refreshed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// assignFinestCells 未割当POIをID順にバッチで処理し、割り当てた件数を返す
func (s *h3MaintenanceServiceImpl) assignFinestCells(ctx context.Context, tx repository.ParentMapTx, log *zap.Logger) (int, error) {
	total := 0
	var afterID int64
	for {
		points, err := tx.ListUnassigned(ctx, afterID, s.opts.BatchSize)
		if err != nil {
			return total, fmt.Errorf("未割当POIの取得に失敗: %w", err)
		}
		if len(points) == 0 {
			return total, nil
		}

		assignments := make([]model.CellAssignment, 0, len(points))
		for _, p := range points {
			cell, err := helper.CellAt(p.Location, model.FinestResolution)
			if err != nil {
				return total, fmt.Errorf("POI %dのセル計算に失敗: %w", p.ID, err)
			}
			assignments = append(assignments, model.CellAssignment{POIID: p.ID, Cell: cell})
		}
		if err := tx.AssignCells(ctx, assignments); err != nil {
			return total, fmt.Errorf("セル割当の保存に失敗: %w", err)
		}

		total += len(assignments)
		afterID = points[len(points)-1].ID
		log.Info("セル割当バッチ完了", zap.Int("batch", len(assignments)), zap.Int("total", total))

		if len(points) < s.opts.BatchSize {
			return total, nil
		}
	}
}

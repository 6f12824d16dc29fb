package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/repository"
	"platial-atlas/internal/domain/strategy"
)

// QueryObserver 集計クエリの実行結果を受け取る（メトリクス用）
type QueryObserver interface {
	ObserveAggregate(kind string, outcome string, elapsed time.Duration)
}

// HexAggregateService セル集合に対する件数集計を提供するサービス
type HexAggregateService interface {
	// Aggregate 指定セルの集計行を取得する（該当POIのないセルは含まない）
	Aggregate(ctx context.Context, q model.AggregateQuery) ([]model.AggregateRow, error)
}

// hexAggregateServiceImpl HexAggregateServiceの実装
type hexAggregateServiceImpl struct {
	repo     repository.GridCellsRepository
	observer QueryObserver
	logger   *zap.Logger
}

// NewHexAggregateService HexAggregateServiceの新しいインスタンスを作成
func NewHexAggregateService(repo repository.GridCellsRepository, observer QueryObserver, logger *zap.Logger) HexAggregateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &hexAggregateServiceImpl{
		repo:     repo,
		observer: observer,
		logger:   logger,
	}
}

func (s *hexAggregateServiceImpl) Aggregate(ctx context.Context, q model.AggregateQuery) ([]model.AggregateRow, error) {
	// 解像度はクエリ組み立て前に検証
	if !model.IsValidResolution(q.Resolution) {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidResolution, q.Resolution)
	}
	if len(q.Cells) == 0 {
		return []model.AggregateRow{}, nil
	}

	st, err := strategy.Select(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.repo.Aggregate(ctx, st, q)
	elapsed := time.Since(start)
	if err != nil {
		s.observe(st.Kind(), "error", elapsed)
		s.logger.Error("集計クエリの実行に失敗",
			zap.String("strategy", st.Kind().String()),
			zap.Int("res", q.Resolution),
			zap.Int("cells", len(q.Cells)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: 集計クエリの実行に失敗: %w", model.ErrStoreUnavailable, err)
	}

	s.observe(st.Kind(), "ok", elapsed)
	s.logger.Debug("集計完了",
		zap.String("strategy", st.Kind().String()),
		zap.Int("res", q.Resolution),
		zap.Int("cells", len(q.Cells)),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", elapsed),
	)
	return rows, nil
}

func (s *hexAggregateServiceImpl) observe(kind strategy.Kind, outcome string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveAggregate(kind.String(), outcome, elapsed)
	}
}

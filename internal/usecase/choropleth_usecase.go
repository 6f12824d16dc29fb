package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"platial-atlas/internal/domain/helper"
	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/service"
)

// ChoroplethRequest 六角形コロプレスの取得条件
type ChoroplethRequest struct {
	BBox       orb.Bound
	Resolution int
	Sources    []model.Source   // 空なら全取り込み元
	Facets     []model.Category // 空なら全カテゴリ
}

type ChoroplethUseCase interface {
	// GetHexChoropleth 表示範囲を覆う全セルのフィーチャーを件数付きで返す
	GetHexChoropleth(ctx context.Context, req ChoroplethRequest) (*geojson.FeatureCollection, error)

	// GetMaterializedChoropleth 事前集計のみを使い、指標の値を value に載せて返す
	GetMaterializedChoropleth(ctx context.Context, bbox orb.Bound, res int, metric string) (*geojson.FeatureCollection, error)
}

// CoveringCellCache 範囲ごとのセル一覧キャッシュ
type CoveringCellCache interface {
	Get(b orb.Bound, res int) ([]model.CoveringCell, bool)
	Add(b orb.Bound, res int, cells []model.CoveringCell)
}

// CoveringObserver セル一覧の計算を記録する（メトリクス用）
type CoveringObserver interface {
	ObserveCoveringCells(n int)
	CoveringCacheHit()
	CoveringCacheMiss()
}

// choroplethUseCaseImpl ChoroplethUseCaseの実装
type choroplethUseCaseImpl struct {
	aggregates service.HexAggregateService
	cache      CoveringCellCache
	observer   CoveringObserver
	maxCells   int
	logger     *zap.Logger
}

// NewChoroplethUseCase 新しいChoroplethUseCaseインスタンスを作成
// cache と observer は nil でもよい。maxCells が0以下なら既定の上限を使う
func NewChoroplethUseCase(
	aggregates service.HexAggregateService,
	cache CoveringCellCache,
	observer CoveringObserver,
	maxCells int,
	logger *zap.Logger,
) ChoroplethUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCells <= 0 {
		maxCells = model.DefaultMaxCoveringCells
	}
	return &choroplethUseCaseImpl{
		aggregates: aggregates,
		cache:      cache,
		observer:   observer,
		maxCells:   maxCells,
		logger:     logger,
	}
}

func (u *choroplethUseCaseImpl) GetHexChoropleth(ctx context.Context, req ChoroplethRequest) (*geojson.FeatureCollection, error) {
	// Step 1: 表示範囲を覆うセルを列挙
	covering, err := u.coveringCells(req.BBox, req.Resolution)
	if err != nil {
		return nil, err
	}

	// Step 2: セルごとの件数を取得（絞り込み有無で戦略が変わる）
	rows, err := u.aggregates.Aggregate(ctx, model.AggregateQuery{
		Resolution: req.Resolution,
		Cells:      cellIDs(covering),
		Sources:    req.Sources,
		Facets:     req.Facets,
	})
	if err != nil {
		return nil, err
	}

	// Step 3: 境界と件数を結合（データのないセルは0）
	return service.AssembleChoropleth(covering, rows, service.AssembleOptions{}), nil
}

func (u *choroplethUseCaseImpl) GetMaterializedChoropleth(ctx context.Context, bbox orb.Bound, res int, metric string) (*geojson.FeatureCollection, error) {
	covering, err := u.coveringCells(bbox, res)
	if err != nil {
		return nil, err
	}

	rows, err := u.aggregates.Aggregate(ctx, model.AggregateQuery{
		Resolution: res,
		Cells:      cellIDs(covering),
	})
	if err != nil {
		return nil, err
	}

	if metric == "" {
		metric = model.FacetTotal
	}
	return service.AssembleChoropleth(covering, rows, service.AssembleOptions{Metric: metric}), nil
}

// coveringCells 表示範囲を覆うセルと境界を返す（キャッシュ優先）
func (u *choroplethUseCaseImpl) coveringCells(bbox orb.Bound, res int) ([]model.CoveringCell, error) {
	if u.cache != nil {
		if cells, ok := u.cache.Get(bbox, res); ok {
			u.cacheHit()
			return cells, nil
		}
		u.cacheMiss()
	}

	ids, err := helper.CellsCovering(bbox, res, u.maxCells)
	if errors.Is(err, model.ErrTooManyCells) {
		u.logger.Info("表示範囲のセル数が上限を超過",
			zap.Int("res", res),
			zap.Int("max", u.maxCells),
			zap.Error(err),
		)
		return nil, model.NewValidationError("bbox",
			fmt.Sprintf("解像度%dでのセル数が上限%dを超えています。範囲を狭めるか解像度を下げてください", res, u.maxCells))
	}
	if err != nil {
		return nil, err
	}
	if u.observer != nil {
		u.observer.ObserveCoveringCells(len(ids))
	}

	covering := make([]model.CoveringCell, 0, len(ids))
	for _, id := range ids {
		ring, err := helper.CellBoundary(id)
		if err != nil {
			return nil, fmt.Errorf("セル境界の計算に失敗: %w", err)
		}
		covering = append(covering, model.CoveringCell{ID: id, Boundary: ring})
	}

	if u.cache != nil {
		u.cache.Add(bbox, res, covering)
	}
	return covering, nil
}

func (u *choroplethUseCaseImpl) cacheHit() {
	if u.observer != nil {
		u.observer.CoveringCacheHit()
	}
}

func (u *choroplethUseCaseImpl) cacheMiss() {
	if u.observer != nil {
		u.observer.CoveringCacheMiss()
	}
}

func cellIDs(covering []model.CoveringCell) []string {
	ids := make([]string, len(covering))
	for i, c := range covering {
		ids[i] = c.ID
	}
	return ids
}

package strategy

import (
	"fmt"

	"platial-atlas/internal/domain/model"
)

// Kind 集計戦略の種類
type Kind int

const (
	// KindMaterialized 絞り込みなし: 事前集計済みのマテリアライズドビューを読む
	KindMaterialized Kind = iota
	// KindFinestCell 絞り込みあり・最細解像度: POIを自身のセルで直接グループ化
	KindFinestCell
	// KindParentMap 絞り込みあり・粗い解像度: 親セルマップと結合して親セルでグループ化
	KindParentMap
)

func (k Kind) String() string {
	switch k {
	case KindMaterialized:
		return "materialized"
	case KindFinestCell:
		return "finest_cell"
	case KindParentMap:
		return "parent_map"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// AggregateStrategy セル集合の集計クエリを組み立てる戦略のインターフェース
type AggregateStrategy interface {
	Kind() Kind

	// BuildQuery 集計条件からSQLとパラメータを生成する
	// 結果の列は h3, n, cats の順
	BuildQuery(q model.AggregateQuery) (string, []any, error)
}

// Select 絞り込み条件と解像度から戦略を選択する
func Select(q model.AggregateQuery) (AggregateStrategy, error) {
	if !model.IsValidResolution(q.Resolution) {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidResolution, q.Resolution)
	}
	switch {
	case !q.HasFilters():
		return NewMaterializedStrategy(), nil
	case q.Resolution == model.FinestResolution:
		return NewFinestCellStrategy(), nil
	default:
		return NewParentMapStrategy(), nil
	}
}

package strategy

import (
	"fmt"

	"platial-atlas/internal/domain/model"
)

// FinestCellStrategy 最細解像度ではPOIに割り当てたセルで直接グループ化する
type FinestCellStrategy struct{}

func NewFinestCellStrategy() AggregateStrategy {
	return &FinestCellStrategy{}
}

func (s *FinestCellStrategy) Kind() Kind { return KindFinestCell }

func (s *FinestCellStrategy) BuildQuery(q model.AggregateQuery) (string, []any, error) {
	if q.Resolution != model.FinestResolution {
		return "", nil, fmt.Errorf("%w: 最細セル集計は解像度%dのみ (指定: %d)", model.ErrInvalidResolution, model.FinestResolution, q.Resolution)
	}
	query, args := groupedQuery{groupKey: "p." + model.ColumnFinestCell}.build(q)
	return query, args, nil
}

package strategy

import (
	"fmt"

	"github.com/lib/pq"

	"platial-atlas/internal/domain/model"
)

// MaterializedStrategy 解像度ごとのマテリアライズドビューから集計行を読む
type MaterializedStrategy struct{}

func NewMaterializedStrategy() AggregateStrategy {
	return &MaterializedStrategy{}
}

func (s *MaterializedStrategy) Kind() Kind { return KindMaterialized }

func (s *MaterializedStrategy) BuildQuery(q model.AggregateQuery) (string, []any, error) {
	if !model.IsValidResolution(q.Resolution) {
		return "", nil, fmt.Errorf("%w: %d", model.ErrInvalidResolution, q.Resolution)
	}
	if q.HasFilters() {
		return "", nil, fmt.Errorf("マテリアライズドビューは絞り込み条件に対応していません")
	}

	query := fmt.Sprintf(
		`SELECT h3, n::bigint AS n, cats FROM %s WHERE h3 = ANY($1::text[])`,
		pq.QuoteIdentifier(model.AggregateView(q.Resolution)),
	)
	return query, []any{pq.Array(q.Cells)}, nil
}

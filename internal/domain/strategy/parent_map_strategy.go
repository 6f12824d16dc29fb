package strategy

import (
	"fmt"

	"github.com/lib/pq"

	"platial-atlas/internal/domain/model"
)

// ParentMapStrategy 粗い解像度では親セルマップと結合して親セルでグループ化する
type ParentMapStrategy struct{}

func NewParentMapStrategy() AggregateStrategy {
	return &ParentMapStrategy{}
}

func (s *ParentMapStrategy) Kind() Kind { return KindParentMap }

func (s *ParentMapStrategy) BuildQuery(q model.AggregateQuery) (string, []any, error) {
	if !model.IsValidResolution(q.Resolution) || q.Resolution >= model.FinestResolution {
		return "", nil, fmt.Errorf("%w: 親セルマップは解像度%d-%dのみ (指定: %d)",
			model.ErrInvalidResolution, model.MinResolution, model.FinestResolution-1, q.Resolution)
	}

	parent := "m." + pq.QuoteIdentifier(model.ParentColumn(q.Resolution))
	join := fmt.Sprintf("JOIN %s m ON m.%s = p.%s",
		pq.QuoteIdentifier(model.ParentMapTable(q.Resolution)),
		model.ColumnChildCell,
		model.ColumnFinestCell,
	)
	query, args := groupedQuery{groupKey: parent, join: join}.build(q)
	return query, args, nil
}

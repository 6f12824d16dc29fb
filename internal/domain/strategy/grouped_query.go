package strategy

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"platial-atlas/internal/domain/model"
)

// groupedQuery POIを集計キーでグループ化する集計SQLの組み立て
type groupedQuery struct {
	groupKey string // グループ化するカラム（例: p.h3_r10, m.parent_r8）
	join     string // 親セルマップとの結合句（不要なら空）
}

// build 合計と全カテゴリの内訳を1回のグループ化で求めるSQLを生成する
// ファセット指定時は対象カテゴリのみを数え、対象外のカテゴリは0を返す
func (g groupedQuery) build(q model.AggregateQuery) (string, []any) {
	args := []any{pq.Array(q.Cells)}
	where := []string{
		"p." + model.ColumnFinestCell + " IS NOT NULL",
		fmt.Sprintf("%s = ANY($1::text[])", g.groupKey),
	}
	if len(q.Facets) > 0 {
		args = append(args, pq.Array(q.FacetStrings()))
		where = append(where, fmt.Sprintf("p.category = ANY($%d::text[])", len(args)))
	}
	if len(q.Sources) > 0 {
		args = append(args, pq.Array(q.SourceStrings()))
		where = append(where, fmt.Sprintf("p.source = ANY($%d::text[])", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(g.groupKey)
	sb.WriteString(" AS h3,\n       COUNT(*)::bigint AS n,\n       jsonb_build_object(")
	sb.WriteString(categoryBreakdown(q.Facets))
	sb.WriteString(") AS cats\nFROM ")
	sb.WriteString(pq.QuoteIdentifier(model.TablePOI))
	sb.WriteString(" p\n")
	if g.join != "" {
		sb.WriteString(g.join)
		sb.WriteString("\n")
	}
	sb.WriteString("WHERE ")
	sb.WriteString(strings.Join(where, "\n  AND "))
	sb.WriteString("\nGROUP BY ")
	sb.WriteString(g.groupKey)

	return sb.String(), args
}

// categoryBreakdown 語彙の全キーについて条件付き件数の式を並べる
func categoryBreakdown(facets []model.Category) string {
	selected := make(map[model.Category]bool, len(facets))
	for _, f := range facets {
		selected[f] = true
	}

	parts := make([]string, 0, len(model.Categories))
	for _, cat := range model.Categories {
		key := pq.QuoteLiteral(string(cat))
		if len(facets) > 0 && !selected[cat] {
			parts = append(parts, key+", 0")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s, COUNT(*) FILTER (WHERE p.category = %s)", key, key))
	}
	return "\n         " + strings.Join(parts, ",\n         ") + "\n       "
}

package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"platial-atlas/internal/domain/model"
)

// AssembleOptions フィーチャー生成のオプション
type AssembleOptions struct {
	// Metric 空でなければ value プロパティに合計（"n"）またはそのカテゴリの件数を出力する
	Metric string
}

// AssembleChoropleth 表示範囲を覆う全セルについて集計行を結合したフィーチャーを生成する
// 集計行のないセルは件数0で補完し、出力順は covering の順序に従う
func AssembleChoropleth(covering []model.CoveringCell, rows []model.AggregateRow, opts AssembleOptions) *geojson.FeatureCollection {
	byCell := make(map[string]model.AggregateRow, len(rows))
	for _, r := range rows {
		byCell[r.Cell] = r
	}

	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(covering))
	for _, cell := range covering {
		row, ok := byCell[cell.ID]
		if !ok {
			row = model.AggregateRow{Cell: cell.ID}
		}

		f := geojson.NewFeature(orb.Polygon{cell.Boundary})
		f.Properties["h3"] = cell.ID
		f.Properties["n"] = row.Count
		f.Properties["cats"] = row.Categories
		if opts.Metric != "" {
			f.Properties["value"] = metricValue(row, opts.Metric)
		}
		fc.Append(f)
	}
	return fc
}

func metricValue(row model.AggregateRow, metric string) int64 {
	if metric == model.FacetTotal {
		return row.Count
	}
	return row.Categories.Get(model.Category(metric))
}

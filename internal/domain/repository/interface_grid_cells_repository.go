package repository

import (
	"context"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/strategy"
)

// GridCellsRepository セル単位の集計を取得するリポジトリ
type GridCellsRepository interface {
	// Aggregate 戦略が組み立てたクエリで集計行を取得する
	// 該当POIのないセルの行は返さない
	Aggregate(ctx context.Context, s strategy.AggregateStrategy, q model.AggregateQuery) ([]model.AggregateRow, error)
}

package repository

import (
	"context"

	"platial-atlas/internal/domain/model"
)

// ParentMapRepository 最細セルの割当と親セルマップを管理するリポジトリ
type ParentMapRepository interface {
	// WithinTx 1つのトランザクション内でfnを実行する
	// fnがエラーを返した場合はロールバックし、何もコミットしない
	WithinTx(ctx context.Context, fn func(tx ParentMapTx) error) error

	// RefreshAggregates 指定解像度の集計マテリアライズドビューを更新する
	RefreshAggregates(ctx context.Context, resolutions []int) error
}

// ParentMapTx トランザクション内で使える操作
type ParentMapTx interface {
	// TryAdvisoryLock トランザクション終了まで有効な排他ロックを試みる
	TryAdvisoryLock(ctx context.Context, key string) (bool, error)

	// EnsureParentMapTables 親セルマップのテーブルがなければ作成する
	EnsureParentMapTables(ctx context.Context, resolutions []int) error

	// ListUnassigned 位置情報があり最細セルが未割当のPOIをID順にlimit件取得する
	ListUnassigned(ctx context.Context, afterID int64, limit int) ([]model.POIPoint, error)

	// AssignCells POIに最細セルを保存する
	AssignCells(ctx context.Context, assignments []model.CellAssignment) error

	// DistinctFinestCells 使用中の最細セルを昇順で取得する
	DistinctFinestCells(ctx context.Context) ([]string, error)

	// ReplaceParentMap 指定解像度の親セルマップを全件入れ替える
	ReplaceParentMap(ctx context.Context, res int, links []model.ParentLink) error
}

package model

import "fmt"

// テーブル・カラム名の定数
const (
	TablePOI        = "poi"
	TableRegionMask = "region_mask"

	ColumnFinestCell = "h3_r10"       // poi上の最細解像度セル
	ColumnChildCell  = "child_h3_r10" // 親セルマップ上の子セル
)

// ParentMapTable 解像度ごとの親セルマップテーブル名を取得する
func ParentMapTable(res int) string {
	return fmt.Sprintf("h3_parent_map_r%d", res)
}

// ParentColumn 親セルマップ上の親セルのカラム名を取得する
func ParentColumn(res int) string {
	return fmt.Sprintf("parent_r%d", res)
}

// AggregateView 解像度ごとの集計マテリアライズドビュー名を取得する
func AggregateView(res int) string {
	return fmt.Sprintf("mv_poi_counts_r%d", res)
}

// AdvisoryLockKey 親セルマップ再構築の排他に使うアドバイザリロックのキー
const AdvisoryLockKey = "platial-atlas:h3-parent-map"

package model

import "github.com/paulmach/orb"

// 解像度の定数
const (
	MinResolution     = 6
	MaxResolution     = 10
	FinestResolution  = 10 // POIに保存する最細解像度
	DefaultResolution = 8

	// DefaultMaxCoveringCells 1リクエストで扱う表示範囲セル数の既定上限
	DefaultMaxCoveringCells = 50000
)

// CoarserResolutions 親セルマップを持つ解像度（最細より粗いもの）
var CoarserResolutions = []int{6, 7, 8, 9}

// AllResolutions 集計をサポートする全解像度
var AllResolutions = []int{6, 7, 8, 9, 10}

// IsValidResolution サポート範囲の解像度かチェック
func IsValidResolution(res int) bool {
	return res >= MinResolution && res <= MaxResolution
}

// ParentLink 最細セルと指定解像度の親セルの対応
type ParentLink struct {
	Child  string
	Parent string
}

// AggregateRow セルごとの集計結果
type AggregateRow struct {
	Cell       string         `json:"h3" db:"h3"`
	Count      int64          `json:"n" db:"n"`
	Categories CategoryCounts `json:"cats" db:"cats"`
}

// AggregateQuery セル集合に対する集計条件
type AggregateQuery struct {
	Resolution int
	Cells      []string
	Sources    []Source   // 空なら全取り込み元
	Facets     []Category // 空なら全カテゴリ
}

// HasFilters 取り込み元またはファセットの絞り込みがあるか
func (q AggregateQuery) HasFilters() bool {
	return len(q.Sources) > 0 || len(q.Facets) > 0
}

// SourceStrings 取り込み元をSQLパラメータ用の文字列に変換する
func (q AggregateQuery) SourceStrings() []string {
	out := make([]string, len(q.Sources))
	for i, s := range q.Sources {
		out[i] = string(s)
	}
	return out
}

// FacetStrings ファセットをSQLパラメータ用の文字列に変換する
func (q AggregateQuery) FacetStrings() []string {
	out := make([]string, len(q.Facets))
	for i, f := range q.Facets {
		out[i] = string(f)
	}
	return out
}

// CoveringCell 表示範囲を覆うセルとその境界
type CoveringCell struct {
	ID       string
	Boundary orb.Ring // [lng, lat] の閉じたリング
}

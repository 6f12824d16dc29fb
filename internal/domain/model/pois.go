package model

import (
	"strings"

	"github.com/paulmach/orb"
)

// Source POIの取り込み元
type Source string

const (
	SourceOSM      Source = "osm"
	SourceOverture Source = "overture"
)

// AllSources 取り込み元の一覧（固定の2種類）
var AllSources = []Source{SourceOSM, SourceOverture}

// ParseSource 文字列を取り込み元に変換する（大文字小文字・前後空白は無視）
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceOSM:
		return SourceOSM, true
	case SourceOverture:
		return SourceOverture, true
	}
	return "", false
}

// POI Point of Interest（取り込み後は不変の地点レコード）
type POI struct {
	ID       int64     `json:"id" db:"id"`                         // 連番ID
	Source   Source    `json:"source" db:"source"`                 // 取り込み元
	SourceID *string   `json:"source_id,omitempty" db:"source_id"` // 取り込み元でのID（NULLABLE）
	Name     *string   `json:"name,omitempty" db:"name"`           // 名称（NULLABLE）
	Category string    `json:"category" db:"category"`             // カテゴリ
	Location orb.Point `json:"-" db:"geom"`                        // 位置情報 [longitude, latitude]
	H3R10    *string   `json:"h3_r10,omitempty" db:"h3_r10"`       // 最細解像度のセル（未割当ならNULL）
}

// POIPoint セル未割当のPOIの座標
type POIPoint struct {
	ID       int64
	Location orb.Point
}

// CellAssignment POIへの最細解像度セルの割当
type CellAssignment struct {
	POIID int64
	Cell  string
}

// POISearchQuery POI一覧の検索条件
type POISearchQuery struct {
	BBox       *orb.Bound // nilなら範囲指定なし
	Category   string     // 空なら全カテゴリ
	Sources    []Source   // 空なら全取り込み元
	Limit      int        // 0なら件数制限なし
	RegionMask bool       // region_maskとの交差で絞り込むか
}

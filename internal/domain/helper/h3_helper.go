package helper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"

	"platial-atlas/internal/domain/model"
)

// BoundToRing 範囲を閉じたリング（始点と終点が同一）に変換する
func BoundToRing(b orb.Bound) orb.Ring {
	return orb.Ring{
		{b.Min.Lon(), b.Min.Lat()},
		{b.Max.Lon(), b.Min.Lat()},
		{b.Max.Lon(), b.Max.Lat()},
		{b.Min.Lon(), b.Max.Lat()},
		{b.Min.Lon(), b.Min.Lat()},
	}
}

// earthRadiusKm 平均地球半径
const earthRadiusKm = 6371.0088

// coveringEstimateSlack 面積から見積もったセル数の許容倍率
// セル面積は場所によって平均の半分程度まで小さくなるため、見積もりに余裕を持たせる
const coveringEstimateSlack = 4

// CellsCovering 範囲と一部でも重なるセルの一覧を返す（重複なし、順序は不定）
// セル数が limit を超える場合は列挙せずに model.ErrTooManyCells を返す
// limit が0以下なら model.DefaultMaxCoveringCells を使う
func CellsCovering(b orb.Bound, res int, limit int) ([]string, error) {
	if !model.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidResolution, res)
	}
	if !isFiniteBound(b) {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = model.DefaultMaxCoveringCells
	}

	// 列挙前に面積で大まかに弾く（ライブラリは見積もり分のバッファを先に確保する）
	estimate, err := EstimateCoveringCells(b, res)
	if err != nil {
		return nil, err
	}
	if estimate > float64(limit)*coveringEstimateSlack {
		return nil, fmt.Errorf("%w: 見積もり%.0f件 (上限%d)", model.ErrTooManyCells, estimate, limit)
	}

	ring := BoundToRing(b)
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, pt := range ring {
		loop = append(loop, h3.NewLatLng(pt.Lat(), pt.Lon()))
	}

	cells, err := h3.PolygonToCellsExperimental(h3.GeoPolygon{GeoLoop: loop}, res, h3.ContainmentOverlapping, int64(limit))
	if errors.Is(err, h3.ErrMemoryBounds) {
		return nil, fmt.Errorf("%w: 上限%d", model.ErrTooManyCells, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("セル集合の計算に失敗: %w", err)
	}

	seen := make(map[h3.Cell]struct{}, len(cells))
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if c == 0 {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c.String())
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: %d件 (上限%d)", model.ErrTooManyCells, len(out), limit)
	}
	return out, nil
}

// EstimateCoveringCells 範囲の球面上の面積を平均セル面積で割ったセル数の見積もり
func EstimateCoveringCells(b orb.Bound, res int) (float64, error) {
	cellArea, err := h3.HexagonAreaAvgKm2(res)
	if err != nil {
		return 0, fmt.Errorf("平均セル面積の取得に失敗 (r%d): %w", res, err)
	}
	dLng := (b.Max.Lon() - b.Min.Lon()) * math.Pi / 180
	area := earthRadiusKm * earthRadiusKm * math.Abs(dLng) *
		math.Abs(math.Sin(b.Max.Lat()*math.Pi/180)-math.Sin(b.Min.Lat()*math.Pi/180))
	return area / cellArea, nil
}

// CellBoundary セルの境界を [lng, lat] の閉じたリングで返す
func CellBoundary(cell string) (orb.Ring, error) {
	c, err := ParseCell(cell)
	if err != nil {
		return nil, err
	}
	boundary, err := h3.CellToBoundary(c)
	if err != nil {
		return nil, fmt.Errorf("セル境界の取得に失敗 (%s): %w", cell, err)
	}

	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, ll := range boundary {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// ParentAt セルを指定した粗い解像度の親セルに変換する
func ParentAt(cell string, res int) (string, error) {
	c, err := ParseCell(cell)
	if err != nil {
		return "", err
	}
	if !model.IsValidResolution(res) || res >= c.Resolution() {
		return "", fmt.Errorf("%w: 親解像度 %d (セル解像度 %d)", model.ErrInvalidResolution, res, c.Resolution())
	}
	parent, err := c.Parent(res)
	if err != nil {
		return "", fmt.Errorf("親セルの取得に失敗 (%s, r%d): %w", cell, res, err)
	}
	return parent.String(), nil
}

// CellAt 座標を含む指定解像度のセルを返す
func CellAt(p orb.Point, res int) (string, error) {
	if !model.IsValidResolution(res) {
		return "", fmt.Errorf("%w: %d", model.ErrInvalidResolution, res)
	}
	if !isFinite(p.Lat()) || !isFinite(p.Lon()) {
		return "", fmt.Errorf("%w: 座標が不正です (%v)", model.ErrInvalidParameter, p)
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(p.Lat(), p.Lon()), res)
	if err != nil {
		return "", fmt.Errorf("セルの計算に失敗: %w", err)
	}
	return c.String(), nil
}

// ParseCell セル識別子の文字列をセルに変換する
func ParseCell(cell string) (h3.Cell, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(cell), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: セル識別子 %q", model.ErrInvalidParameter, cell)
	}
	c := h3.Cell(v)
	if !c.IsValid() {
		return 0, fmt.Errorf("%w: セル識別子 %q", model.ErrInvalidParameter, cell)
	}
	return c, nil
}

func isFiniteBound(b orb.Bound) bool {
	return isFinite(b.Min[0]) && isFinite(b.Min[1]) && isFinite(b.Max[0]) && isFinite(b.Max[1])
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

package helper

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v4"

	"platial-atlas/internal/domain/model"
)

// ノッティンガム周辺
var testBound = orb.Bound{Min: orb.Point{-1.2, 52.9}, Max: orb.Point{-1.1, 53.0}}

func TestCellsCovering(t *testing.T) {
	t.Run("部分的に重なるセルも含む", func(t *testing.T) {
		cells, err := CellsCovering(testBound, 8, 0)
		require.NoError(t, err)
		require.NotEmpty(t, cells)

		got := make(map[string]struct{}, len(cells))
		for _, c := range cells {
			_, dup := got[c]
			assert.False(t, dup, "重複セル: %s", c)
			got[c] = struct{}{}

			cell, err := ParseCell(c)
			require.NoError(t, err)
			assert.Equal(t, 8, cell.Resolution())
		}

		// 中心点包含のセルはすべて含まれる
		ring := BoundToRing(testBound)
		loop := make(h3.GeoLoop, 0, len(ring))
		for _, pt := range ring {
			loop = append(loop, h3.NewLatLng(pt.Lat(), pt.Lon()))
		}
		centered, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, 8)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(cells), len(centered))
		for _, c := range centered {
			assert.Contains(t, got, c.String())
		}

		// 四隅を含むセルも含まれる
		for _, pt := range ring {
			corner, err := CellAt(pt, 8)
			require.NoError(t, err)
			assert.Contains(t, got, corner)
		}
	})

	t.Run("セルより小さい範囲でも1つ以上返す", func(t *testing.T) {
		tiny := orb.Bound{Min: orb.Point{-1.15, 52.95}, Max: orb.Point{-1.1499, 52.9501}}
		cells, err := CellsCovering(tiny, 6, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, cells)
	})

	t.Run("決定的である", func(t *testing.T) {
		a, err := CellsCovering(testBound, 7, 0)
		require.NoError(t, err)
		b, err := CellsCovering(testBound, 7, 0)
		require.NoError(t, err)
		assert.ElementsMatch(t, a, b)
	})

	t.Run("有限でない範囲は空集合", func(t *testing.T) {
		cells, err := CellsCovering(orb.Bound{Min: orb.Point{math.NaN(), 52.9}, Max: orb.Point{-1.1, math.Inf(1)}}, 8, 0)
		require.NoError(t, err)
		assert.Empty(t, cells)
	})

	t.Run("上限を超える範囲は列挙せずに拒否", func(t *testing.T) {
		// 大陸規模の範囲を最細解像度で要求（約1億セル）
		continent := orb.Bound{Min: orb.Point{-10, 45}, Max: orb.Point{10, 60}}
		_, err := CellsCovering(continent, 10, 50000)
		assert.True(t, errors.Is(err, model.ErrTooManyCells))

		_, err = CellsCovering(continent, 10, 0)
		assert.True(t, errors.Is(err, model.ErrTooManyCells), "既定上限も適用される")
	})

	t.Run("見積もりは通るが実数が上限を超える", func(t *testing.T) {
		all, err := CellsCovering(testBound, 8, 0)
		require.NoError(t, err)
		require.Greater(t, len(all), 2)

		_, err = CellsCovering(testBound, 8, len(all)-1)
		assert.True(t, errors.Is(err, model.ErrTooManyCells))

		exact, err := CellsCovering(testBound, 8, len(all))
		require.NoError(t, err)
		assert.ElementsMatch(t, all, exact)
	})

	t.Run("サポート外の解像度", func(t *testing.T) {
		_, err := CellsCovering(testBound, 5, 0)
		assert.True(t, errors.Is(err, model.ErrInvalidResolution))
		_, err = CellsCovering(testBound, 11, 0)
		assert.True(t, errors.Is(err, model.ErrInvalidResolution))
	})
}

func TestEstimateCoveringCells(t *testing.T) {
	cells, err := CellsCovering(testBound, 8, 0)
	require.NoError(t, err)

	estimate, err := EstimateCoveringCells(testBound, 8)
	require.NoError(t, err)
	assert.InDelta(t, float64(len(cells)), estimate, float64(len(cells)))

	continent, err := EstimateCoveringCells(orb.Bound{Min: orb.Point{-10, 45}, Max: orb.Point{10, 60}}, 10)
	require.NoError(t, err)
	assert.Greater(t, continent, 1e7)
}

func TestCellBoundary(t *testing.T) {
	cell, err := CellAt(orb.Point{-1.15, 52.95}, 8)
	require.NoError(t, err)

	ring, err := CellBoundary(cell)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ring), 7)
	assert.Equal(t, ring[0], ring[len(ring)-1], "リングは閉じている")

	// 経度・緯度の順で格納されている
	for _, pt := range ring {
		assert.InDelta(t, -1.15, pt.Lon(), 0.05)
		assert.InDelta(t, 52.95, pt.Lat(), 0.05)
	}

	_, err = CellBoundary("not-a-cell")
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))
}

func TestParentAt(t *testing.T) {
	finest, err := CellAt(orb.Point{-1.15, 52.95}, model.FinestResolution)
	require.NoError(t, err)
	c, err := ParseCell(finest)
	require.NoError(t, err)

	for _, res := range model.CoarserResolutions {
		parent, err := ParentAt(finest, res)
		require.NoError(t, err)

		expected, err := c.Parent(res)
		require.NoError(t, err)
		assert.Equal(t, expected.String(), parent)

		pc, err := ParseCell(parent)
		require.NoError(t, err)
		assert.Equal(t, res, pc.Resolution())
	}

	t.Run("粗くない解像度はエラー", func(t *testing.T) {
		r8, err := ParentAt(finest, 8)
		require.NoError(t, err)

		_, err = ParentAt(r8, 9)
		assert.True(t, errors.Is(err, model.ErrInvalidResolution))
		_, err = ParentAt(r8, 8)
		assert.True(t, errors.Is(err, model.ErrInvalidResolution))
		_, err = ParentAt(r8, 5)
		assert.True(t, errors.Is(err, model.ErrInvalidResolution))
	})
}

func TestCellAt(t *testing.T) {
	a, err := CellAt(orb.Point{-1.15, 52.95}, 10)
	require.NoError(t, err)
	b, err := CellAt(orb.Point{-1.15, 52.95}, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b, "同じ座標は同じセル")

	_, err = CellAt(orb.Point{math.NaN(), 0}, 10)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))
}

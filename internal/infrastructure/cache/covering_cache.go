package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"

	"platial-atlas/internal/domain/model"
)

// CoveringCache 範囲と解像度から求めたセル一覧（境界付き）のLRUキャッシュ
// セル一覧は (bbox, res) の純粋関数なので無効化は不要。件数は決してキャッシュしない
// 件数の上限に加えて、保持するセルの合計数にも上限を設ける
type CoveringCache struct {
	mu       sync.Mutex
	cells    *lru.Cache[string, []model.CoveringCell]
	maxCells int
	total    int // 保持中のセル合計（mu で保護、追い出しは Add の中でのみ起きる）
}

// NewCoveringCache 指定件数とセル合計数を上限とするキャッシュを作成
func NewCoveringCache(size, maxCells int) (*CoveringCache, error) {
	if size <= 0 {
		size = 512
	}
	if maxCells <= 0 {
		maxCells = 200000
	}
	cc := &CoveringCache{maxCells: maxCells}
	c, err := lru.NewWithEvict[string, []model.CoveringCell](size, func(_ string, v []model.CoveringCell) {
		cc.total -= len(v)
	})
	if err != nil {
		return nil, fmt.Errorf("セル一覧キャッシュの作成に失敗: %w", err)
	}
	cc.cells = c
	return cc, nil
}

// Key 範囲と解像度からキャッシュキーを作る
func Key(b orb.Bound, res int) string {
	return fmt.Sprintf("%d:%g,%g,%g,%g", res, b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
}

// Get キャッシュ済みのセル一覧を取得
func (c *CoveringCache) Get(b orb.Bound, res int) ([]model.CoveringCell, bool) {
	return c.cells.Get(Key(b, res))
}

// Add セル一覧をキャッシュに追加
// 1件でセル合計の上限を超える一覧は保持しない
func (c *CoveringCache) Add(b orb.Bound, res int, cells []model.CoveringCell) {
	if len(cells) > c.maxCells {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	present, _ := c.cells.ContainsOrAdd(Key(b, res), cells)
	if present {
		return
	}
	c.total += len(cells)
	for c.total > c.maxCells {
		if _, _, ok := c.cells.RemoveOldest(); !ok {
			break
		}
	}
}

// Len キャッシュ件数
func (c *CoveringCache) Len() int {
	return c.cells.Len()
}

// TotalCells 保持中のセル合計
func (c *CoveringCache) TotalCells() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

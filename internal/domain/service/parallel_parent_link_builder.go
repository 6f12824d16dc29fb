package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"platial-atlas/internal/domain/helper"
	"platial-atlas/internal/domain/model"
)

// ParentLinkBuilder 最細セルから各解像度の親セル対応を並行で計算する
type ParentLinkBuilder struct {
	maxGoroutines int
}

// NewParentLinkBuilder 新しいParentLinkBuilderを作成
func NewParentLinkBuilder() *ParentLinkBuilder {
	return &ParentLinkBuilder{
		maxGoroutines: 4, // 同時実行数を制限
	}
}

// parentLinkResult 解像度ごとの計算結果
type parentLinkResult struct {
	res   int
	links []model.ParentLink
	err   error
}

// Build 解像度ごとの親セル対応を子セル昇順で返す
// いずれかのセルで失敗した場合は全体をエラーにする
func (b *ParentLinkBuilder) Build(ctx context.Context, cells []string, resolutions []int) (map[int][]model.ParentLink, error) {
	sorted := append([]string(nil), cells...)
	sort.Strings(sorted)

	semaphore := make(chan struct{}, b.maxGoroutines)
	results := make(chan parentLinkResult, len(resolutions))
	var wg sync.WaitGroup

	for _, res := range resolutions {
		wg.Add(1)
		go func(res int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result := parentLinkResult{res: res, links: make([]model.ParentLink, 0, len(sorted))}
			for i, child := range sorted {
				if i%1024 == 0 && ctx.Err() != nil {
					result.err = ctx.Err()
					break
				}
				parent, err := helper.ParentAt(child, res)
				if err != nil {
					result.err = fmt.Errorf("r%dの親セル計算に失敗: %w", res, err)
					break
				}
				result.links = append(result.links, model.ParentLink{Child: child, Parent: parent})
			}
			results <- result
		}(res)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[int][]model.ParentLink, len(resolutions))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		out[r.res] = r.links
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

package repository

import (
	"context"

	"platial-atlas/internal/domain/model"
)

type POIsRepository interface {
	// Search 条件に合うPOIをID降順で取得する
	Search(ctx context.Context, q model.POISearchQuery) ([]model.POI, error)
}

package usecase

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/repository"
)

type POIsUseCase interface {
	// SearchPOIs 条件に合うPOIを点フィーチャーとしてID降順で返す
	SearchPOIs(ctx context.Context, q model.POISearchQuery) (*geojson.FeatureCollection, error)
}

// poisUseCaseImpl POIsUseCaseの実装
type poisUseCaseImpl struct {
	poiRepo    repository.POIsRepository
	regionMask bool
}

// NewPOIsUseCase 新しいPOIsUseCaseインスタンスを作成
// regionMask が true の場合は region_mask と交差するPOIに限定する
func NewPOIsUseCase(poiRepo repository.POIsRepository, regionMask bool) POIsUseCase {
	return &poisUseCaseImpl{
		poiRepo:    poiRepo,
		regionMask: regionMask,
	}
}

func (u *poisUseCaseImpl) SearchPOIs(ctx context.Context, q model.POISearchQuery) (*geojson.FeatureCollection, error) {
	q.RegionMask = u.regionMask

	pois, err := u.poiRepo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: POI検索に失敗: %w", model.ErrStoreUnavailable, err)
	}

	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(pois))
	for _, p := range pois {
		f := geojson.NewFeature(p.Location)
		f.Properties["id"] = p.ID
		f.Properties["source"] = p.Source
		f.Properties["source_id"] = p.SourceID
		f.Properties["name"] = p.Name
		f.Properties["category"] = p.Category
		fc.Append(f)
	}
	return fc, nil
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var defaultBBox = orb.Bound{Min: orb.Point{-1.4, 52.8}, Max: orb.Point{-0.5, 53.5}}

type mockChoroplethUseCase struct {
	mock.Mock
}

func (m *mockChoroplethUseCase) GetHexChoropleth(ctx context.Context, req usecase.ChoroplethRequest) (*geojson.FeatureCollection, error) {
	args := m.Called(ctx, req)
	fc, _ := args.Get(0).(*geojson.FeatureCollection)
	return fc, args.Error(1)
}

func (m *mockChoroplethUseCase) GetMaterializedChoropleth(ctx context.Context, bbox orb.Bound, res int, metric string) (*geojson.FeatureCollection, error) {
	args := m.Called(ctx, bbox, res, metric)
	fc, _ := args.Get(0).(*geojson.FeatureCollection)
	return fc, args.Error(1)
}

type mockPOIsUseCase struct {
	mock.Mock
}

func (m *mockPOIsUseCase) SearchPOIs(ctx context.Context, q model.POISearchQuery) (*geojson.FeatureCollection, error) {
	args := m.Called(ctx, q)
	fc, _ := args.Get(0).(*geojson.FeatureCollection)
	return fc, args.Error(1)
}

type fakePinger struct {
	err error
}

func (p fakePinger) HealthCheck(ctx context.Context) error { return p.err }

type countingHTTPObserver struct {
	requests int
	limited  int
	routes   []string
}

func (o *countingHTTPObserver) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	o.requests++
	o.routes = append(o.routes, route)
}

func (o *countingHTTPObserver) RateLimited() { o.limited++ }

type countingAggregateService struct {
	calls int
}

func (s *countingAggregateService) Aggregate(ctx context.Context, q model.AggregateQuery) ([]model.AggregateRow, error) {
	s.calls++
	return []model.AggregateRow{}, nil
}

func newTestRouter(choropleth usecase.ChoroplethUseCase, pois usecase.POIsUseCase, opts RouterOptions) *gin.Engine {
	return NewRouter(Handlers{
		Choropleth: NewChoroplethHandler(choropleth, 8, defaultBBox),
		POIs:       NewPOIsHandler(pois, 100),
		Health:     NewHealthHandler(fakePinger{}, nil),
	}, opts)
}

func doGet(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sampleCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	f.Properties["h3"] = "88194ad30dfffff"
	f.Properties["n"] = int64(2)
	f.Properties["cats"] = model.CategoryCounts{}
	fc.Append(f)
	return fc
}

func TestChoroplethHandler_GetHexTiles(t *testing.T) {
	t.Run("不正なパラメータは400でストアに到達しない", func(t *testing.T) {
		testCases := []struct {
			name  string
			query string
			field string
		}{
			{"bboxの要素数不足", "bbox=1,2,3", "bbox"},
			{"bboxが数値でない", "bbox=a,b,c,d", "bbox"},
			{"緯度が範囲外", "bbox=0,-91,1,1", "bbox"},
			{"解像度が範囲外", "res=11", "res"},
			{"解像度が整数でない", "res=eight", "res"},
			{"不明な取り込み元", "source=osm,foo", "source"},
			{"不明なファセット", "facet=shop,unknown", "facet"},
			{"旧名metricの不明な値", "metric=unknown", "facet"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				uc := &mockChoroplethUseCase{}
				r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

				w := doGet(r, "/api/tiles/h3?"+tc.query)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, tc.field, decodeBody(t, w)["field"])
				uc.AssertNotCalled(t, "GetHexChoropleth", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("未指定ならデフォルトの解像度と範囲", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetHexChoropleth", mock.Anything, usecase.ChoroplethRequest{BBox: defaultBBox, Resolution: 8}).
			Return(sampleCollection(), nil)
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/tiles/h3")
		require.Equal(t, http.StatusOK, w.Code)

		fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
		require.NoError(t, err)
		require.Len(t, fc.Features, 1)
		assert.Equal(t, "88194ad30dfffff", fc.Features[0].Properties["h3"])
		assert.Equal(t, float64(2), fc.Features[0].Properties["n"])
		cats, ok := fc.Features[0].Properties["cats"].(map[string]any)
		require.True(t, ok)
		assert.Len(t, cats, len(model.Categories))
		uc.AssertExpectations(t)
	})

	t.Run("絞り込み値は正規化して渡す", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetHexChoropleth", mock.Anything, usecase.ChoroplethRequest{
			BBox:       orb.Bound{Min: orb.Point{-1.2, 52.9}, Max: orb.Point{-1.1, 53.0}},
			Resolution: 10,
			Sources:    []model.Source{model.SourceOverture},
			Facets:     []model.Category{model.CategoryShop, model.CategoryAmenity},
		}).Return(sampleCollection(), nil)
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/tiles/h3?res=10&bbox=-1.1,53.0,-1.2,52.9&source=%20Overture,overture&facet=n,SHOP,shop,amenity")
		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("metricはfacetの旧名として扱う", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetHexChoropleth", mock.Anything, mock.MatchedBy(func(req usecase.ChoroplethRequest) bool {
			return len(req.Facets) == 1 && req.Facets[0] == model.CategoryTourism
		})).Return(sampleCollection(), nil)
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/tiles/h3?metric=tourism")
		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("ストア障害は500で詳細を出さない", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetHexChoropleth", mock.Anything, mock.Anything).
			Return(nil, errors.Join(model.ErrStoreUnavailable, errors.New(`relation "h3_parent_map_r8" does not exist`)))
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/tiles/h3")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "h3_parent_map")
	})

	t.Run("全取り込み元の指定は絞り込みなしとして渡す", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetHexChoropleth", mock.Anything, usecase.ChoroplethRequest{BBox: defaultBBox, Resolution: 8}).
			Return(sampleCollection(), nil)
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/tiles/h3?source=osm,overture")
		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("解像度の内部不整合は500", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetHexChoropleth", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: 12", model.ErrInvalidResolution))
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/tiles/h3")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "resolution")
	})

	t.Run("表示範囲が広すぎる場合は400", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetHexChoropleth", mock.Anything, mock.Anything).
			Return(nil, model.NewValidationError("bbox", "セル数が上限を超えています"))
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/tiles/h3?res=10&bbox=-10,40,10,60")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bbox", decodeBody(t, w)["field"])
	})
}

func TestChoroplethHandler_広域の表示範囲(t *testing.T) {
	agg := &countingAggregateService{}
	uc := usecase.NewChoroplethUseCase(agg, nil, nil, 50000, nil)
	r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

	w := doGet(r, "/api/tiles/h3?res=10&bbox=-10,45,10,60")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bbox", decodeBody(t, w)["field"])
	assert.Zero(t, agg.calls)

	// 粗い解像度の地域規模の範囲は受け付ける
	w = doGet(r, "/api/tiles/h3?res=6&bbox=-2,50,2,53")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, agg.calls)
}

func TestChoroplethHandler_GetChoropleth(t *testing.T) {
	t.Run("指標未指定は合計", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetMaterializedChoropleth", mock.Anything, defaultBBox, 7, "n").Return(sampleCollection(), nil)
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/choropleth?res=7")
		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("カテゴリ指標", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		uc.On("GetMaterializedChoropleth", mock.Anything, defaultBBox, 8, "leisure").Return(sampleCollection(), nil)
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/choropleth?metric=Leisure")
		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("不明な指標は400", func(t *testing.T) {
		uc := &mockChoroplethUseCase{}
		r := newTestRouter(uc, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/choropleth?metric=foo")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "metric", decodeBody(t, w)["field"])
		uc.AssertNotCalled(t, "GetMaterializedChoropleth", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPOIsHandler_ListPOIs(t *testing.T) {
	t.Run("条件を検索クエリに変換する", func(t *testing.T) {
		uc := &mockPOIsUseCase{}
		bbox := orb.Bound{Min: orb.Point{-1.2, 52.9}, Max: orb.Point{-1.1, 53.0}}
		uc.On("SearchPOIs", mock.Anything, model.POISearchQuery{
			BBox:     &bbox,
			Category: "amenity",
			Sources:  []model.Source{model.SourceOSM},
			Limit:    50,
		}).Return(geojson.NewFeatureCollection(), nil)
		r := newTestRouter(&mockChoroplethUseCase{}, uc, RouterOptions{})

		w := doGet(r, "/api/poi?bbox=-1.2,52.9,-1.1,53.0&category=Amenity&source=osm&limit=50")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "FeatureCollection", decodeBody(t, w)["type"])
		uc.AssertExpectations(t)
	})

	t.Run("条件なしは全件", func(t *testing.T) {
		uc := &mockPOIsUseCase{}
		uc.On("SearchPOIs", mock.Anything, model.POISearchQuery{}).Return(geojson.NewFeatureCollection(), nil)
		r := newTestRouter(&mockChoroplethUseCase{}, uc, RouterOptions{})

		w := doGet(r, "/api/poi")
		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("不正なパラメータは400", func(t *testing.T) {
		testCases := []struct {
			name  string
			query string
		}{
			{"limitが0", "limit=0"},
			{"limitが上限超過", "limit=101"},
			{"limitが整数でない", "limit=many"},
			{"categoryが長すぎる", "category=" + strings.Repeat("a", 65)},
			{"bboxが不正", "bbox=1,2"},
			{"不明な取り込み元", "source=wikidata"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				uc := &mockPOIsUseCase{}
				r := newTestRouter(&mockChoroplethUseCase{}, uc, RouterOptions{})

				w := doGet(r, "/api/poi?"+tc.query)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				uc.AssertNotCalled(t, "SearchPOIs", mock.Anything, mock.Anything)
			})
		}
	})
}

func TestGetFacets(t *testing.T) {
	r := newTestRouter(&mockChoroplethUseCase{}, &mockPOIsUseCase{}, RouterOptions{})

	w := doGet(r, "/api/facets")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Facets []model.FacetDef `json:"facets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Facets, len(model.Categories)+1)
	assert.Equal(t, model.FacetTotal, body.Facets[0].Key)
}

func TestHealthHandler_Healthz(t *testing.T) {
	t.Run("正常", func(t *testing.T) {
		r := newTestRouter(&mockChoroplethUseCase{}, &mockPOIsUseCase{}, RouterOptions{})
		w := doGet(r, "/healthz")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ストアに接続できない", func(t *testing.T) {
		r := NewRouter(Handlers{Health: NewHealthHandler(fakePinger{err: errors.New("down")}, nil)}, RouterOptions{})
		w := doGet(r, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("リクエストIDを付与し指定があれば引き継ぐ", func(t *testing.T) {
		r := newTestRouter(&mockChoroplethUseCase{}, &mockPOIsUseCase{}, RouterOptions{})

		w := doGet(r, "/api/facets")
		assert.NotEmpty(t, w.Header().Get(requestIDHeader))

		req := httptest.NewRequest(http.MethodGet, "/api/facets", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	})

	t.Run("ルート単位でメトリクスを記録", func(t *testing.T) {
		obs := &countingHTTPObserver{}
		r := newTestRouter(&mockChoroplethUseCase{}, &mockPOIsUseCase{}, RouterOptions{Observer: obs})

		doGet(r, "/api/facets")
		doGet(r, "/nowhere")
		assert.Equal(t, 2, obs.requests)
		assert.Equal(t, []string{"/api/facets", "unmatched"}, obs.routes)
	})

	t.Run("上限を超えたクライアントは429", func(t *testing.T) {
		limiter, err := NewIPRateLimiter(0.001, 2, 10)
		require.NoError(t, err)
		obs := &countingHTTPObserver{}
		r := newTestRouter(&mockChoroplethUseCase{}, &mockPOIsUseCase{}, RouterOptions{Observer: obs, RateLimiter: limiter})

		assert.Equal(t, http.StatusOK, doGet(r, "/api/facets").Code)
		assert.Equal(t, http.StatusOK, doGet(r, "/api/facets").Code)
		assert.Equal(t, http.StatusTooManyRequests, doGet(r, "/api/facets").Code)
		assert.Equal(t, 1, obs.limited)

		// ヘルスチェックは対象外
		assert.Equal(t, http.StatusOK, doGet(r, "/healthz").Code)
	})

	t.Run("IPごとに独立したバケット", func(t *testing.T) {
		limiter, err := NewIPRateLimiter(0.001, 1, 10)
		require.NoError(t, err)

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.2"))
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"platial-atlas/internal/domain/helper"
	"platial-atlas/internal/usecase"
)

// ChoroplethHandler 六角形コロプレスAPIのハンドラー
type ChoroplethHandler struct {
	choroplethUseCase usecase.ChoroplethUseCase
	defaultRes        int
	defaultBBox       orb.Bound
}

// NewChoroplethHandler 新しいChoroplethHandlerインスタンスを作成
func NewChoroplethHandler(choroplethUseCase usecase.ChoroplethUseCase, defaultRes int, defaultBBox orb.Bound) *ChoroplethHandler {
	return &ChoroplethHandler{
		choroplethUseCase: choroplethUseCase,
		defaultRes:        defaultRes,
		defaultBBox:       defaultBBox,
	}
}

// GetHexTiles 表示範囲のセルごとの件数を返す
// GET /api/tiles/h3?res=&bbox=&source=&facet=
func (h *ChoroplethHandler) GetHexTiles(c *gin.Context) {
	res, bbox, err := h.parseViewport(c)
	if err != nil {
		respondError(c, err)
		return
	}

	sources, err := helper.ParseSourceList(c.Query("source"))
	if err != nil {
		respondError(c, err)
		return
	}

	// metric は facet の旧名
	facetParam := c.Query("facet")
	if facetParam == "" {
		facetParam = c.Query("metric")
	}
	facets, err := helper.ParseFacetList(facetParam)
	if err != nil {
		respondError(c, err)
		return
	}

	fc, err := h.choroplethUseCase.GetHexChoropleth(c.Request.Context(), usecase.ChoroplethRequest{
		BBox:       bbox,
		Resolution: res,
		Sources:    sources,
		Facets:     facets,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, fc)
}

// GetChoropleth 事前集計のみを使うコロプレス
// GET /api/choropleth?res=&bbox=&metric=
func (h *ChoroplethHandler) GetChoropleth(c *gin.Context) {
	res, bbox, err := h.parseViewport(c)
	if err != nil {
		respondError(c, err)
		return
	}

	metric, err := helper.ParseMetric(c.Query("metric"))
	if err != nil {
		respondError(c, err)
		return
	}

	fc, err := h.choroplethUseCase.GetMaterializedChoropleth(c.Request.Context(), bbox, res, metric)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, fc)
}

// parseViewport res と bbox を取得（未指定ならデフォルト値）
func (h *ChoroplethHandler) parseViewport(c *gin.Context) (int, orb.Bound, error) {
	res, err := helper.ParseResolution(c.Query("res"), h.defaultRes)
	if err != nil {
		return 0, orb.Bound{}, err
	}

	bbox := h.defaultBBox
	if raw, ok := c.GetQuery("bbox"); ok {
		bbox, err = helper.ParseBBox(raw)
		if err != nil {
			return 0, orb.Bound{}, err
		}
	}
	return res, bbox, nil
}

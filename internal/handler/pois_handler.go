package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"platial-atlas/internal/domain/helper"
	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/usecase"
)

// poiListQuery GET /api/poi のクエリパラメータ
type poiListQuery struct {
	BBox     string `form:"bbox"`
	Category string `form:"category" binding:"omitempty,min=1,max=64"`
	Source   string `form:"source"`
	Limit    *int   `form:"limit" binding:"omitempty,min=1"`
}

// POIsHandler POI一覧APIのハンドラー
type POIsHandler struct {
	poisUseCase usecase.POIsUseCase
	maxLimit    int
}

// NewPOIsHandler 新しいPOIsHandlerインスタンスを作成
func NewPOIsHandler(poisUseCase usecase.POIsUseCase, maxLimit int) *POIsHandler {
	return &POIsHandler{
		poisUseCase: poisUseCase,
		maxLimit:    maxLimit,
	}
}

// ListPOIs 条件に合うPOIを点フィーチャーで返す
// GET /api/poi?bbox=&category=&source=&limit=
func (h *POIsHandler) ListPOIs(c *gin.Context) {
	var req poiListQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	q, err := h.toSearchQuery(req)
	if err != nil {
		respondError(c, err)
		return
	}

	fc, err := h.poisUseCase.SearchPOIs(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, fc)
}

func (h *POIsHandler) toSearchQuery(req poiListQuery) (model.POISearchQuery, error) {
	var q model.POISearchQuery

	if strings.TrimSpace(req.BBox) != "" {
		bbox, err := helper.ParseBBox(req.BBox)
		if err != nil {
			return q, err
		}
		q.BBox = &bbox
	}

	q.Category = strings.ToLower(strings.TrimSpace(req.Category))

	sources, err := helper.ParseSourceList(req.Source)
	if err != nil {
		return q, err
	}
	q.Sources = sources

	if req.Limit != nil {
		if h.maxLimit > 0 && *req.Limit > h.maxLimit {
			return q, model.NewValidationError("limit", fmt.Sprintf("1から%dの範囲で指定してください", h.maxLimit))
		}
		q.Limit = *req.Limit
	}
	return q, nil
}

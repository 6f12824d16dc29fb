package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"platial-atlas/internal/domain/model"
)

// GetFacets 凡例用のファセット一覧（合計 "n" を含む）
// GET /api/facets
func GetFacets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"facets": model.Facets})
}

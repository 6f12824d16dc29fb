package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"platial-atlas/internal/domain/model"
)

// respondError エラーの種類に応じたステータスで応答する
// 不正なパラメータは400でフィールドを返し、それ以外は内部情報を出さずに500を返す
// ErrInvalidResolution は入力検証後には起こらない内部の不整合なので500とする
func respondError(c *gin.Context, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストパラメータが正しくありません",
			"field":   ve.Field,
			"details": ve.Error(),
		})
	case errors.Is(err, model.ErrInvalidParameter):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストパラメータが正しくありません",
			"details": err.Error(),
		})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "内部エラーが発生しました",
		})
	}
}

// respondBindError クエリのバインドに失敗した場合の応答
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "リクエストの形式が正しくありません",
		"details": err.Error(),
	})
}

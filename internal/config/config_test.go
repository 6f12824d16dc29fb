package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_デフォルト値(t *testing.T) {
	t.Setenv("DEFAULT_RESOLUTION", "")
	t.Setenv("DEFAULT_BBOX", "")
	t.Setenv("H3_REFRESH_VIEWS", "")
	t.Setenv("QUERY_TIMEOUT_SECONDS", "")
	t.Setenv("COVERING_CACHE_MAX_CELLS", "")

	cfg := Load()

	assert.Equal(t, 8, cfg.DefaultResolution)
	assert.Equal(t, "-1.4,52.8,-0.5,53.5", cfg.DefaultBBox)
	assert.True(t, cfg.RefreshViews)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 200000, cfg.CoveringCacheMaxCells)
}

func TestLoad_環境変数で上書き(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("H3_ASSIGN_BATCH_SIZE", "100")
	t.Setenv("POI_REGION_MASK", "yes")
	t.Setenv("AUTO_MIGRATE", "off")
	t.Setenv("MAX_COVERING_CELLS", "abc")

	cfg := Load()

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 100, cfg.AssignBatchSize)
	assert.True(t, cfg.POIRegionMask)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 50000, cfg.MaxCoveringCells, "数値でない値はデフォルトに戻る")
}

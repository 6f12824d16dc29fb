package repository

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// SRID WGS84
const SRID = 4326

// ParseGeoJSONPoint ST_AsGeoJSON の出力を orb.Point に変換
func ParseGeoJSONPoint(raw []byte) (orb.Point, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return orb.Point{}, fmt.Errorf("geom GeoJSONパースエラー: %w", err)
	}
	p, ok := g.Geometry().(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("geom がPointではありません: %s", g.Type)
	}
	return p, nil
}

// EnvelopeArgs 範囲を ST_MakeEnvelope(minLng, minLat, maxLng, maxLat, 4326) の引数に変換
func EnvelopeArgs(b orb.Bound) []any {
	return []any{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

// envelopeSQL プレースホルダ番号 first から始まる ST_MakeEnvelope 式
func envelopeSQL(first int) string {
	return fmt.Sprintf("ST_MakeEnvelope($%d, $%d, $%d, $%d, %d)", first, first+1, first+2, first+3, SRID)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/repository"
	"platial-atlas/internal/infrastructure/database"
)

type PostgresPOIsRepository struct {
	client *database.PostgreSQLClient
}

func NewPostgresPOIsRepository(client *database.PostgreSQLClient) repository.POIsRepository {
	return &PostgresPOIsRepository{
		client: client,
	}
}

// POIResult クエリ結果を受け取るための構造体
type POIResult struct {
	ID       int64
	Source   string
	SourceID sql.NullString
	Name     sql.NullString
	Category string
	Geom     []byte // ST_AsGeoJSON
	H3R10    sql.NullString
}

// ToPOI POIResultをmodel.POIに変換
func (pr *POIResult) ToPOI() (*model.POI, error) {
	location, err := ParseGeoJSONPoint(pr.Geom)
	if err != nil {
		return nil, fmt.Errorf("POI %d: %w", pr.ID, err)
	}

	poi := &model.POI{
		ID:       pr.ID,
		Source:   model.Source(pr.Source),
		Category: pr.Category,
		Location: location,
	}
	if pr.SourceID.Valid {
		poi.SourceID = &pr.SourceID.String
	}
	if pr.Name.Valid {
		poi.Name = &pr.Name.String
	}
	if pr.H3R10.Valid {
		poi.H3R10 = &pr.H3R10.String
	}
	return poi, nil
}

// buildPOISearchQuery 検索条件からSQLとパラメータを生成する
func buildPOISearchQuery(q model.POISearchQuery) (string, []any) {
	var args []any
	where := []string{"p.geom IS NOT NULL"}

	if q.BBox != nil {
		first := len(args) + 1
		args = append(args, EnvelopeArgs(*q.BBox)...)
		where = append(where, "p.geom && "+envelopeSQL(first))
	}
	if q.RegionMask {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s rm WHERE ST_Intersects(rm.geom, p.geom))",
			pq.QuoteIdentifier(model.TableRegionMask),
		))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if len(q.Sources) > 0 {
		sources := make([]string, len(q.Sources))
		for i, s := range q.Sources {
			sources[i] = string(s)
		}
		args = append(args, pq.Array(sources))
		where = append(where, fmt.Sprintf("p.source = ANY($%d::text[])", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.source, p.source_id, p.name, p.category,
		       ST_AsGeoJSON(p.geom) AS geom, p.h3_r10
		FROM %s p
		WHERE %s
		ORDER BY p.id DESC`,
		pq.QuoteIdentifier(model.TablePOI),
		strings.Join(where, "\n		  AND "),
	)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf("\n		LIMIT $%d", len(args))
	}
	return query, args
}

// Search 条件に合うPOIをID降順で取得する
func (r *PostgresPOIsRepository) Search(ctx context.Context, q model.POISearchQuery) ([]model.POI, error) {
	query, args := buildPOISearchQuery(q)

	rows, err := r.client.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("POI検索失敗: %w", err)
	}
	defer rows.Close()

	pois := make([]model.POI, 0)
	for rows.Next() {
		var result POIResult
		if err := rows.Scan(&result.ID, &result.Source, &result.SourceID, &result.Name,
			&result.Category, &result.Geom, &result.H3R10); err != nil {
			return nil, fmt.Errorf("POIデータスキャンエラー: %w", err)
		}
		poi, err := result.ToPOI()
		if err != nil {
			return nil, err
		}
		pois = append(pois, *poi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("POIデータ読み込みエラー: %w", err)
	}
	return pois, nil
}

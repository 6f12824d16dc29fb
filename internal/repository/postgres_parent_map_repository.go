package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/repository"
	"platial-atlas/internal/infrastructure/database"
)

// parentMapInsertChunk 1回のINSERTで送る親セル対応の件数
const parentMapInsertChunk = 10000

type PostgresParentMapRepository struct {
	client *database.PostgreSQLClient
	logger *zap.Logger
}

func NewPostgresParentMapRepository(client *database.PostgreSQLClient, logger *zap.Logger) repository.ParentMapRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresParentMapRepository{
		client: client,
		logger: logger,
	}
}

// WithinTx 1つのトランザクション内でfnを実行する
func (r *PostgresParentMapRepository) WithinTx(ctx context.Context, fn func(tx repository.ParentMapTx) error) error {
	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始失敗: %w", err)
	}

	if err := fn(&postgresParentMapTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("ロールバック失敗", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミット失敗: %w", err)
	}
	return nil
}

// RefreshAggregates 集計マテリアライズドビューを読み取りを止めずに更新する
func (r *PostgresParentMapRepository) RefreshAggregates(ctx context.Context, resolutions []int) error {
	for _, res := range resolutions {
		view := pq.QuoteIdentifier(model.AggregateView(res))
		if _, err := r.client.DB.ExecContext(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+view); err != nil {
			return fmt.Errorf("%s の更新失敗: %w", view, err)
		}
		r.logger.Info("集計ビュー更新完了", zap.Int("res", res))
	}
	return nil
}

// postgresParentMapTx ParentMapTxの実装
type postgresParentMapTx struct {
	tx *sql.Tx
}

func (t *postgresParentMapTx) TryAdvisoryLock(ctx context.Context, key string) (bool, error) {
	var locked bool
	if err := t.tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, key).Scan(&locked); err != nil {
		return false, fmt.Errorf("アドバイザリロック失敗: %w", err)
	}
	return locked, nil
}

func (t *postgresParentMapTx) EnsureParentMapTables(ctx context.Context, resolutions []int) error {
	for _, res := range resolutions {
		for _, stmt := range parentMapDDL(res) {
			if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s の作成失敗: %w", model.ParentMapTable(res), err)
			}
		}
	}
	return nil
}

// parentMapDDL 親セルマップのテーブルと親セルのインデックスを作成するDDL
func parentMapDDL(res int) []string {
	table := pq.QuoteIdentifier(model.ParentMapTable(res))
	parent := pq.QuoteIdentifier(model.ParentColumn(res))
	index := pq.QuoteIdentifier(model.ParentMapTable(res) + "_parent_idx")
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s text PRIMARY KEY, %s text NOT NULL)`,
			table, model.ColumnChildCell, parent),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`, index, table, parent),
	}
}

func (t *postgresParentMapTx) ListUnassigned(ctx context.Context, afterID int64, limit int) ([]model.POIPoint, error) {
	query := fmt.Sprintf(`
		SELECT id, ST_X(geom), ST_Y(geom)
		FROM %s
		WHERE h3_r10 IS NULL AND geom IS NOT NULL AND id > $1
		ORDER BY id
		LIMIT $2`, pq.QuoteIdentifier(model.TablePOI))

	rows, err := t.tx.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("未割当POIの取得失敗: %w", err)
	}
	defer rows.Close()

	points := make([]model.POIPoint, 0, limit)
	for rows.Next() {
		var p model.POIPoint
		var lng, lat float64
		if err := rows.Scan(&p.ID, &lng, &lat); err != nil {
			return nil, fmt.Errorf("未割当POIスキャンエラー: %w", err)
		}
		p.Location = orb.Point{lng, lat}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (t *postgresParentMapTx) AssignCells(ctx context.Context, assignments []model.CellAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	ids := make([]int64, len(assignments))
	cells := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.POIID
		cells[i] = a.Cell
	}

	query := fmt.Sprintf(`
		UPDATE %s AS p
		SET h3_r10 = u.cell
		FROM unnest($1::bigint[], $2::text[]) AS u(id, cell)
		WHERE p.id = u.id`, pq.QuoteIdentifier(model.TablePOI))
	if _, err := t.tx.ExecContext(ctx, query, pq.Array(ids), pq.Array(cells)); err != nil {
		return fmt.Errorf("セル割当の更新失敗: %w", err)
	}
	return nil
}

func (t *postgresParentMapTx) DistinctFinestCells(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT h3_r10 FROM %s WHERE h3_r10 IS NOT NULL ORDER BY h3_r10`,
		pq.QuoteIdentifier(model.TablePOI))
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("最細セル一覧の取得失敗: %w", err)
	}
	defer rows.Close()

	var cells []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("最細セルスキャンエラー: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// ReplaceParentMap 親セルマップを全件入れ替える
// TRUNCATEは読み取りをブロックするため、DELETEとINSERTで行う（コミットまで旧データが見える）
func (t *postgresParentMapTx) ReplaceParentMap(ctx context.Context, res int, links []model.ParentLink) error {
	table := pq.QuoteIdentifier(model.ParentMapTable(res))
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("%s の削除失敗: %w", table, err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (%s, %s) SELECT * FROM unnest($1::text[], $2::text[])`,
		table, model.ColumnChildCell, pq.QuoteIdentifier(model.ParentColumn(res)))
	for start := 0; start < len(links); start += parentMapInsertChunk {
		end := min(start+parentMapInsertChunk, len(links))
		children := make([]string, 0, end-start)
		parents := make([]string, 0, end-start)
		for _, l := range links[start:end] {
			children = append(children, l.Child)
			parents = append(parents, l.Parent)
		}
		if _, err := t.tx.ExecContext(ctx, insert, pq.Array(children), pq.Array(parents)); err != nil {
			return fmt.Errorf("%s への挿入失敗: %w", table, err)
		}
	}
	return nil
}

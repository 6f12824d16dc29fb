package repository

import (
	"context"
	"fmt"
	"time"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/repository"
	"platial-atlas/internal/domain/strategy"
	"platial-atlas/internal/infrastructure/database"
)

type PostgresGridCellsRepository struct {
	client       *database.PostgreSQLClient
	queryTimeout time.Duration
}

func NewPostgresGridCellsRepository(client *database.PostgreSQLClient, queryTimeout time.Duration) repository.GridCellsRepository {
	return &PostgresGridCellsRepository{
		client:       client,
		queryTimeout: queryTimeout,
	}
}

// Aggregate 戦略が組み立てた集計クエリを実行する
func (r *PostgresGridCellsRepository) Aggregate(ctx context.Context, s strategy.AggregateStrategy, q model.AggregateQuery) ([]model.AggregateRow, error) {
	query, args, err := s.BuildQuery(q)
	if err != nil {
		return nil, err
	}

	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	rows, err := r.client.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s集計の取得失敗 (r%d): %w", s.Kind(), q.Resolution, err)
	}
	defer rows.Close()

	result := make([]model.AggregateRow, 0, len(q.Cells))
	for rows.Next() {
		var row model.AggregateRow
		if err := rows.Scan(&row.Cell, &row.Count, &row.Categories); err != nil {
			return nil, fmt.Errorf("集計データスキャンエラー: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("集計データ読み込みエラー: %w", err)
	}
	return result, nil
}

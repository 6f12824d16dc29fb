package repository

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/repository"
	"platial-atlas/internal/domain/strategy"
)

// BreakerConfig サーキットブレーカーの設定
type BreakerConfig struct {
	FailureThreshold uint32        // 連続失敗でオープンにする回数
	Timeout          time.Duration // オープンからハーフオープンに移るまでの時間
}

// BreakerGridCellsRepository 集計ストアへの問い合わせをサーキットブレーカーで保護する
// オープン中はストアに問い合わせずに gobreaker.ErrOpenState を返す
type BreakerGridCellsRepository struct {
	next    repository.GridCellsRepository
	breaker *gobreaker.CircuitBreaker[[]model.AggregateRow]
}

func NewBreakerGridCellsRepository(next repository.GridCellsRepository, cfg BreakerConfig, logger *zap.Logger) repository.GridCellsRepository {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "aggregate-store",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// 呼び出し側のキャンセルはストア障害として数えない
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("サーキットブレーカー状態変更",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &BreakerGridCellsRepository{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[[]model.AggregateRow](settings),
	}
}

func (r *BreakerGridCellsRepository) Aggregate(ctx context.Context, s strategy.AggregateStrategy, q model.AggregateQuery) ([]model.AggregateRow, error) {
	return r.breaker.Execute(func() ([]model.AggregateRow, error) {
		return r.next.Aggregate(ctx, s, q)
	})
}

// State 現在のブレーカー状態（closed, half-open, open）
func (r *BreakerGridCellsRepository) State() string {
	return r.breaker.State().String()
}

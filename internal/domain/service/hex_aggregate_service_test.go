package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"platial-atlas/internal/domain/model"
	"platial-atlas/internal/domain/strategy"
)

type mockGridCellsRepository struct {
	mock.Mock
}

func (m *mockGridCellsRepository) Aggregate(ctx context.Context, s strategy.AggregateStrategy, q model.AggregateQuery) ([]model.AggregateRow, error) {
	args := m.Called(ctx, s.Kind(), q)
	rows, _ := args.Get(0).([]model.AggregateRow)
	return rows, args.Error(1)
}

type recordingObserver struct {
	kinds    []string
	outcomes []string
}

func (o *recordingObserver) ObserveAggregate(kind, outcome string, _ time.Duration) {
	o.kinds = append(o.kinds, kind)
	o.outcomes = append(o.outcomes, outcome)
}

func TestHexAggregateService_Aggregate(t *testing.T) {
	ctx := context.Background()
	cells := []string{"88194ad30dfffff"}

	t.Run("範囲外の解像度はストアに問い合わせない", func(t *testing.T) {
		repo := new(mockGridCellsRepository)
		svc := NewHexAggregateService(repo, nil, nil)

		_, err := svc.Aggregate(ctx, model.AggregateQuery{Resolution: 11, Cells: cells})
		assert.True(t, errors.Is(err, model.ErrInvalidResolution))
		repo.AssertNotCalled(t, "Aggregate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("セルが空なら問い合わせずに空を返す", func(t *testing.T) {
		repo := new(mockGridCellsRepository)
		svc := NewHexAggregateService(repo, nil, nil)

		rows, err := svc.Aggregate(ctx, model.AggregateQuery{Resolution: 8, Facets: []model.Category{model.CategoryShop}})
		require.NoError(t, err)
		assert.Empty(t, rows)
		repo.AssertNotCalled(t, "Aggregate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("戦略を選択して集計する", func(t *testing.T) {
		repo := new(mockGridCellsRepository)
		obs := &recordingObserver{}
		svc := NewHexAggregateService(repo, obs, nil)

		q := model.AggregateQuery{Resolution: 10, Cells: cells, Facets: []model.Category{model.CategoryShop}}
		expected := []model.AggregateRow{{Cell: cells[0], Count: 2}}
		repo.On("Aggregate", ctx, strategy.KindFinestCell, q).Return(expected, nil).Once()

		rows, err := svc.Aggregate(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, expected, rows)
		assert.Equal(t, []string{"finest_cell"}, obs.kinds)
		assert.Equal(t, []string{"ok"}, obs.outcomes)
		repo.AssertExpectations(t)
	})

	t.Run("ストアのエラーはStoreUnavailable", func(t *testing.T) {
		repo := new(mockGridCellsRepository)
		obs := &recordingObserver{}
		svc := NewHexAggregateService(repo, obs, nil)

		q := model.AggregateQuery{Resolution: 8, Cells: cells}
		storeErr := errors.New("connection refused")
		repo.On("Aggregate", ctx, strategy.KindMaterialized, q).Return(nil, storeErr).Once()

		_, err := svc.Aggregate(ctx, q)
		assert.True(t, errors.Is(err, model.ErrStoreUnavailable))
		assert.True(t, errors.Is(err, storeErr))
		assert.Equal(t, []string{"error"}, obs.outcomes)
	})
}

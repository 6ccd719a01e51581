package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

var (
	runner = model.Product{ID: "P001", Name: "Runner", BasePrice: 20000, CategoryIDs: []string{"shoes"}}
	tote   = model.Product{ID: "P002", Name: "Tote", BasePrice: 8000, CategoryIDs: []string{"bags"}, Discounted: true}
)

func TestProductService_GetAll_Paging(t *testing.T) {
	ctx := context.Background()

	// limit/offset in, limit/offset the repository sees
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"Passed through", 25, 50, 25, 50},
		{"Zero limit", 0, 0, 10, 0},
		{"Negative limit", -1, 0, 10, 0},
		{"Capped", 500, 0, 100, 0},
		{"Negative offset", 10, -3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockProductRepository)
			repo.On("GetAll", ctx, tt.wantLimit, tt.wantOffset).Return([]model.Product{runner, tote}, nil)

			products, err := NewProductService(repo, zerolog.Nop()).GetAll(ctx, tt.limit, tt.offset)

			require.NoError(t, err)
			assert.Len(t, products, 2)
			repo.AssertExpectations(t)
		})
	}
}

func TestProductService_GetAll_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepository)
	repo.On("GetAll", ctx, 10, 0).Return(nil, errors.New("connection reset"))

	products, err := NewProductService(repo, zerolog.Nop()).GetAll(ctx, 10, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, products)
}

func TestProductService_GetByID(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("connection reset")

	tests := []struct {
		name    string
		id      string
		found   *model.Product
		repoErr error
		wantErr error
	}{
		{name: "Found", id: "P001", found: &runner},
		{name: "Missing", id: "P999", wantErr: model.ErrProductNotFound},
		{name: "Blank id skips repository", id: "", wantErr: model.ErrProductNotFound},
		{name: "Repository error", id: "P001", repoErr: dbErr, wantErr: dbErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockProductRepository)
			if tt.id != "" {
				repo.On("GetByID", ctx, tt.id).Return(tt.found, tt.repoErr)
			}

			product, err := NewProductService(repo, zerolog.Nop()).GetByID(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, product)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.found, product)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestProductService_GetByIDs(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		ids      []string
		lookedUp []string
		found    []model.Product
		repoErr  error
		want     []model.Product
		wantErr  bool
	}{
		{
			name:     "Duplicates and blanks collapse",
			ids:      []string{"P001", "", "P001", "P002", "P002"},
			lookedUp: []string{"P001", "P002"},
			found:    []model.Product{runner, tote},
			want:     []model.Product{runner, tote},
		},
		{
			name: "Nothing to look up",
			ids:  []string{"", ""},
			want: []model.Product{},
		},
		{
			name:     "Repository error",
			ids:      []string{"P001"},
			lookedUp: []string{"P001"},
			repoErr:  errors.New("connection reset"),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockProductRepository)
			if tt.lookedUp != nil {
				repo.On("GetByIDs", ctx, tt.lookedUp).Return(tt.found, tt.repoErr)
			}

			products, err := NewProductService(repo, zerolog.Nop()).GetByIDs(ctx, tt.ids)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, products)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, products)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestCartProduct(t *testing.T) {
	got := cartProduct(&tote)

	assert.Equal(t, "P002", got.ID)
	assert.Equal(t, "Tote", got.Name)
	assert.Equal(t, int64(8000), got.BasePrice)
	assert.Equal(t, []string{"bags"}, got.CategoryIDs)
	assert.True(t, got.Discounted)
}

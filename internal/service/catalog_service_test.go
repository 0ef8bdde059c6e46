package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCatalog() (*CatalogService, *mockCatalogStore) {
	store := &mockCatalogStore{Books: map[int64]*domain.Book{
		1: {ID: 1, Title: "Refactoring", OrgPrice: decimal.NewFromInt(40), ActualPrice: decimal.NewFromInt(40)},
	}}
	return NewCatalogService(store, zap.NewNop()), store
}

func TestAddReview(t *testing.T) {
	svc, store := newTestCatalog()

	review, err := svc.AddReview(context.Background(), 1, "  Reader  ", 5, "great")
	require.NoError(t, err)
	assert.Equal(t, int64(1), review.ID)
	assert.Equal(t, "Reader", review.VoterName)
	require.Len(t, store.Reviews, 1)
}

func TestAddReview_Validation(t *testing.T) {
	tests := []struct {
		name  string
		voter string
		stars int
	}{
		{name: "blank voter", voter: " ", stars: 3},
		{name: "negative stars", voter: "a", stars: -1},
		{name: "too many stars", voter: "a", stars: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestCatalog()
			_, err := svc.AddReview(context.Background(), 1, tt.voter, tt.stars, "")
			assert.ErrorIs(t, err, ErrInvalidReview)
			assert.Empty(t, store.Reviews)
		})
	}
}

func TestAddReview_ZeroStarsAllowed(t *testing.T) {
	svc, _ := newTestCatalog()

	_, err := svc.AddReview(context.Background(), 1, "grumpy", 0, "")
	assert.NoError(t, err)
}

func TestAddReview_UnknownBook(t *testing.T) {
	svc, _ := newTestCatalog()

	_, err := svc.AddReview(context.Background(), 404, "a", 1, "")
	assert.ErrorIs(t, err, repository.ErrBookNotFound)
}

func TestAddReview_StoreError(t *testing.T) {
	svc, store := newTestCatalog()
	store.Err = errors.New("locked")

	_, err := svc.AddReview(context.Background(), 1, "a", 1, "")
	assert.ErrorIs(t, err, store.Err)
}

func TestAddPromotion(t *testing.T) {
	svc, store := newTestCatalog()

	require.NoError(t, svc.AddPromotion(context.Background(), 1, decimal.RequireFromString("19.99"), "sale"))
	require.NotNil(t, store.Promotion)
	assert.True(t, decimal.RequireFromString("19.99").Equal(store.Promotion.Price))
	assert.Equal(t, "sale", store.Promotion.Text)

	require.NoError(t, svc.RemovePromotion(context.Background(), 1))
	assert.Nil(t, store.Promotion)
}

func TestAddPromotion_NegativePrice(t *testing.T) {
	svc, store := newTestCatalog()

	err := svc.AddPromotion(context.Background(), 1, decimal.NewFromInt(-1), "")
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Nil(t, store.Promotion)
}

func TestAddPromotion_ZeroTakesOffSale(t *testing.T) {
	svc, store := newTestCatalog()

	require.NoError(t, svc.AddPromotion(context.Background(), 1, decimal.Zero, "withdrawn"))
	assert.True(t, store.Promotion.Price.IsZero())
}

func TestGetBook(t *testing.T) {
	svc, _ := newTestCatalog()

	book, err := svc.GetBook(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Refactoring", book.Title)

	_, err = svc.GetBook(context.Background(), 2)
	assert.ErrorIs(t, err, repository.ErrBookNotFound)
}

func TestRemovePromotion_UnknownBook(t *testing.T) {
	svc, _ := newTestCatalog()

	assert.ErrorIs(t, svc.RemovePromotion(context.Background(), 9), repository.ErrBookNotFound)
}

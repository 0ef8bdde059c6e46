package service

import (
	"context"
	"sync"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// mockOrderStore implements OrderStore and OrderReader for testing
type mockOrderStore struct {
	mu sync.RWMutex

	Books     map[int64]domain.BookPriceView
	PricesErr error
	SaveErr   error

	PriceCalls [][]int64
	Saved      []domain.Order
	nextID     int64
}

func newMockOrderStore(books ...domain.BookPriceView) *mockOrderStore {
	m := &mockOrderStore{Books: make(map[int64]domain.BookPriceView)}
	for _, b := range books {
		m.Books[b.BookID] = b
	}
	return m
}

func (m *mockOrderStore) BookPrices(_ context.Context, ids []int64) (map[int64]domain.BookPriceView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PriceCalls = append(m.PriceCalls, append([]int64(nil), ids...))
	if m.PricesErr != nil {
		return nil, m.PricesErr
	}
	out := make(map[int64]domain.BookPriceView, len(ids))
	for _, id := range ids {
		if b, ok := m.Books[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (m *mockOrderStore) SaveOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.nextID++
	order.AssignID(m.nextID)
	m.Saved = append(m.Saved, *order)
	return nil
}

func (m *mockOrderStore) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.Saved {
		if m.Saved[i].ID() == id {
			o := m.Saved[i]
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderStore) ListOrdersByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Order
	for i := range m.Saved {
		if m.Saved[i].UserID() == userID {
			o := m.Saved[i]
			out = append(out, &o)
		}
	}
	return out, nil
}

func (m *mockOrderStore) savedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Saved)
}

// mockCatalogStore implements CatalogStore for testing
type mockCatalogStore struct {
	Books     map[int64]*domain.Book
	Reviews   []domain.Review
	Err       error
	Promotion *promotionCall
}

type promotionCall struct {
	BookID int64
	Price  decimal.Decimal
	Text   string
}

func (m *mockCatalogStore) GetBook(_ context.Context, id int64) (*domain.Book, error) {
	if b, ok := m.Books[id]; ok {
		return b, nil
	}
	return nil, repository.ErrBookNotFound
}

func (m *mockCatalogStore) AddReview(_ context.Context, review *domain.Review) error {
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Books[review.BookID]; !ok {
		return repository.ErrBookNotFound
	}
	review.ID = int64(len(m.Reviews) + 1)
	m.Reviews = append(m.Reviews, *review)
	return nil
}

func (m *mockCatalogStore) SetPromotion(_ context.Context, bookID int64, actualPrice decimal.Decimal, text string) error {
	if _, ok := m.Books[bookID]; !ok {
		return repository.ErrBookNotFound
	}
	m.Promotion = &promotionCall{BookID: bookID, Price: actualPrice, Text: text}
	return nil
}

func (m *mockCatalogStore) RemovePromotion(_ context.Context, bookID int64) error {
	if _, ok := m.Books[bookID]; !ok {
		return repository.ErrBookNotFound
	}
	m.Promotion = nil
	return nil
}

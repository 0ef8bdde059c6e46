package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/basket"
	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is everything order placement needs from persistence.
type OrderStore interface {
	BookPrices(ctx context.Context, ids []int64) (map[int64]domain.BookPriceView, error)
	SaveOrder(ctx context.Context, order *domain.Order) error
}

type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
}

type OrderService struct {
	store  OrderStore
	orders OrderReader
	logger *zap.Logger
	now    func() time.Time
}

func NewOrderService(store OrderStore, orders OrderReader, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:  store,
		orders: orders,
		logger: logger,
		now:    time.Now,
	}
}

// PlaceOrder turns the basket lines into a persisted order.
//
// Missing terms consent and an empty basket fail immediately. Books that are
// not for sale are collected so the user sees every problem at once. All of
// these come back as *ValidationError and nothing is saved. Any other error
// is a fault: an unknown book id, a failed lookup or a failed save.
func (s *OrderService) PlaceOrder(ctx context.Context, acceptedTerms bool, userID uuid.UUID, lines []basket.LineItem) (*domain.Order, error) {
	if !acceptedTerms {
		return nil, newValidationError(MsgTermsNotAccepted)
	}
	if len(lines) == 0 {
		return nil, newValidationError(MsgEmptyBasket)
	}

	prices, err := s.store.BookPrices(ctx, distinctBookIDs(lines))
	if err != nil {
		return nil, fmt.Errorf("failed to look up book prices: %w", err)
	}

	var problems []string
	priced := make([]domain.PricedLine, 0, len(lines))
	for _, line := range lines {
		view, ok := prices[line.BookID]
		if !ok {
			s.logger.Error("basket line references unknown book",
				zap.String("user_id", userID.String()),
				zap.Int64("book_id", line.BookID))
			return nil, fmt.Errorf("%w: book %d", ErrUnknownBook, line.BookID)
		}
		if !view.IsForSale() {
			problems = append(problems, fmt.Sprintf("Sorry, the book '%s' is not for sale.", view.Title))
			continue
		}
		priced = append(priced, domain.PricedLine{
			BookID:    line.BookID,
			Quantity:  line.Quantity,
			UnitPrice: view.ActualPrice,
		})
	}
	if len(problems) > 0 {
		return nil, newValidationError(problems...)
	}

	order, err := domain.CreateOrder(userID, priced, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveOrder(ctx, &order); err != nil {
		s.logger.Error("failed to save order",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("order placed",
		zap.Int64("order_id", order.ID()),
		zap.String("user_id", userID.String()),
		zap.Int("lines", len(priced)),
		zap.String("total", order.Total().StringFixed(2)))

	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.ListOrdersByUserID(ctx, userID)
}

// GetOrder only returns orders placed by userID; other users' orders are
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID() != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func distinctBookIDs(lines []basket.LineItem) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.BookID]; ok {
			continue
		}
		seen[l.BookID] = struct{}{}
		ids = append(ids, l.BookID)
	}
	return ids
}

// IsValidationError reports whether err carries user-facing problems.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

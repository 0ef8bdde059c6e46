package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_bookstore/internal/basket"
	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, acceptedTerms bool, userID uuid.UUID, lines []basket.LineItem) (*domain.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	GetOrder(ctx context.Context, userID uuid.UUID, orderID int64) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
	logger  *zap.Logger
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout, logger: logger}
}

type CheckoutRequestDTO struct {
	AcceptedTerms bool `json:"accepted_terms"`
}

type OrderLineDTO struct {
	BookID    int64  `json:"book_id"`
	LineNum   int    `json:"line_num"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type OrderResponseDTO struct {
	ID             int64          `json:"id"`
	UserID         string         `json:"user_id"`
	DateOrderedUTC string         `json:"date_ordered_utc"`
	Lines          []OrderLineDTO `json:"lines"`
	TotalAmount    string         `json:"total_amount"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	lines := o.Lines()
	dtoLines := make([]OrderLineDTO, 0, len(lines))
	for _, l := range lines {
		dtoLines = append(dtoLines, OrderLineDTO{
			BookID:    l.BookID,
			LineNum:   l.LineNum,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return OrderResponseDTO{
		ID:             o.ID(),
		UserID:         o.UserID().String(),
		DateOrderedUTC: o.DateOrderedUTC().Format(time.RFC3339),
		Lines:          dtoLines,
		TotalAmount:    o.Total().StringFixed(2),
	}
}

// POST /api/v1/checkout
//
// On success the basket is emptied and the cookie rewritten. On failure the
// basket is left as it was so the user can correct it.
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	b := loadBasket(r, h.logger)
	order, err := h.orders.PlaceOrder(ctx, req.AcceptedTerms, b.UserID, b.Lines())
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	b.ClearAll()
	saveBasket(w, b)
	respondJSON(w, h.logger, http.StatusCreated, convertOrder(order))
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	b := loadBasket(r, h.logger)
	orders, err := h.orders.ListOrders(ctx, b.UserID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, h.logger, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := positiveIDParam(r, "order_id")
	if !ok {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_order_id", "order_id must be a positive integer")
		return
	}

	b := loadBasket(r, h.logger)
	order, err := h.orders.GetOrder(ctx, b.UserID, orderID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, convertOrder(order))
}

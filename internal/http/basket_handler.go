package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_bookstore/internal/basket"
	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	BasketCookieName = "bookstore-basket"
	basketCookieAge  = 30 * 24 * time.Hour
)

type BookReader interface {
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
}

type BasketHandler struct {
	books   BookReader
	timeout time.Duration
	logger  *zap.Logger
}

func NewBasketHandler(books BookReader, timeout time.Duration, logger *zap.Logger) *BasketHandler {
	return &BasketHandler{books: books, timeout: timeout, logger: logger}
}

type AddLineRequestDTO struct {
	BookID   int64 `json:"book_id"`
	Quantity int   `json:"quantity"`
}

type BasketResponseDTO struct {
	UserID string            `json:"user_id"`
	Lines  []basket.LineItem `json:"lines"`
}

func toBasketDTO(b *basket.Basket) BasketResponseDTO {
	lines := b.Lines()
	if lines == nil {
		lines = make([]basket.LineItem, 0)
	}
	return BasketResponseDTO{UserID: b.UserID.String(), Lines: lines}
}

// loadBasket decodes the basket cookie. A missing or corrupt cookie yields a
// fresh empty basket; corruption is logged.
func loadBasket(r *http.Request, logger *zap.Logger) *basket.Basket {
	var value *string
	if c, err := r.Cookie(BasketCookieName); err == nil {
		value = &c.Value
	}

	b, err := basket.Decode(value)
	if err != nil {
		logger.Warn("resetting corrupt basket cookie",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		return basket.New()
	}
	return b
}

func saveBasket(w http.ResponseWriter, b *basket.Basket) {
	http.SetCookie(w, &http.Cookie{
		Name:     BasketCookieName,
		Value:    b.Encode(),
		Path:     "/",
		MaxAge:   int(basketCookieAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GET /api/v1/basket
func (h *BasketHandler) GetBasket(w http.ResponseWriter, r *http.Request) {
	b := loadBasket(r, h.logger)
	saveBasket(w, b)
	respondJSON(w, h.logger, http.StatusOK, toBasketDTO(b))
}

// POST /api/v1/basket/items
func (h *BasketHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.BookID <= 0 {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_book_id", "book_id must be positive")
		return
	}

	if _, err := h.books.GetBook(ctx, req.BookID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	b := loadBasket(r, h.logger)
	if err := b.AddLine(basket.LineItem{BookID: req.BookID, Quantity: req.Quantity}); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	saveBasket(w, b)
	respondJSON(w, h.logger, http.StatusCreated, toBasketDTO(b))
}

// DELETE /api/v1/basket/items/{index}
func (h *BasketHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_index", "index must be an integer")
		return
	}

	b := loadBasket(r, h.logger)
	if err := b.RemoveLine(index); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	saveBasket(w, b)
	respondJSON(w, h.logger, http.StatusOK, toBasketDTO(b))
}

// DELETE /api/v1/basket
func (h *BasketHandler) ClearBasket(w http.ResponseWriter, r *http.Request) {
	b := loadBasket(r, h.logger)
	b.ClearAll()
	saveBasket(w, b)
	respondJSON(w, h.logger, http.StatusOK, toBasketDTO(b))
}

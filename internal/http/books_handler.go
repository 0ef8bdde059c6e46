package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CatalogService interface {
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	AddReview(ctx context.Context, bookID int64, voterName string, numStars int, comment string) (*domain.Review, error)
	AddPromotion(ctx context.Context, bookID int64, actualPrice decimal.Decimal, promotionalText string) error
	RemovePromotion(ctx context.Context, bookID int64) error
}

type BooksHandler struct {
	catalog CatalogService
	timeout time.Duration
	logger  *zap.Logger
}

func NewBooksHandler(catalog CatalogService, timeout time.Duration, logger *zap.Logger) *BooksHandler {
	return &BooksHandler{catalog: catalog, timeout: timeout, logger: logger}
}

type BookResponseDTO struct {
	ID                  int64   `json:"id"`
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	Publisher           string  `json:"publisher"`
	PublishedOn         string  `json:"published_on"`
	OrgPrice            string  `json:"org_price"`
	ActualPrice         string  `json:"actual_price"`
	PromotionalText     string  `json:"promotional_text,omitempty"`
	ImageURL            string  `json:"image_url,omitempty"`
	Authors             string  `json:"authors"`
	ReviewsCount        int     `json:"reviews_count"`
	ReviewsAverageVotes float64 `json:"reviews_average_votes"`
	ForSale             bool    `json:"for_sale"`
}

type AddReviewRequestDTO struct {
	VoterName string `json:"voter_name"`
	NumStars  int    `json:"num_stars"`
	Comment   string `json:"comment"`
}

type ReviewResponseDTO struct {
	ID        int64  `json:"id"`
	BookID    int64  `json:"book_id"`
	VoterName string `json:"voter_name"`
	NumStars  int    `json:"num_stars"`
	Comment   string `json:"comment"`
}

type PromotionRequestDTO struct {
	ActualPrice     decimal.Decimal `json:"actual_price"`
	PromotionalText string          `json:"promotional_text"`
}

func convertBook(b *domain.Book) BookResponseDTO {
	return BookResponseDTO{
		ID:                  b.ID,
		Title:               b.Title,
		Description:         b.Description,
		Publisher:           b.Publisher,
		PublishedOn:         b.PublishedOn.Format(time.DateOnly),
		OrgPrice:            b.OrgPrice.StringFixed(2),
		ActualPrice:         b.ActualPrice.StringFixed(2),
		PromotionalText:     b.PromotionalText,
		ImageURL:            b.ImageURL,
		Authors:             b.Cache.AuthorsOrdered,
		ReviewsCount:        b.Cache.ReviewsCount,
		ReviewsAverageVotes: b.Cache.ReviewsAverageVotes,
		ForSale:             b.ActualPrice.IsPositive(),
	}
}

// GET /api/v1/books/{book_id}
func (h *BooksHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID, ok := positiveIDParam(r, "book_id")
	if !ok {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_book_id", "book_id must be a positive integer")
		return
	}

	book, err := h.catalog.GetBook(ctx, bookID)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, convertBook(book))
}

// POST /api/v1/books/{book_id}/reviews
func (h *BooksHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID, ok := positiveIDParam(r, "book_id")
	if !ok {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_book_id", "book_id must be a positive integer")
		return
	}

	var req AddReviewRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	review, err := h.catalog.AddReview(ctx, bookID, req.VoterName, req.NumStars, req.Comment)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, ReviewResponseDTO{
		ID:        review.ID,
		BookID:    review.BookID,
		VoterName: review.VoterName,
		NumStars:  review.NumStars,
		Comment:   review.Comment,
	})
}

// PUT /api/v1/books/{book_id}/promotion
func (h *BooksHandler) SetPromotion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID, ok := positiveIDParam(r, "book_id")
	if !ok {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_book_id", "book_id must be a positive integer")
		return
	}

	var req PromotionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.catalog.AddPromotion(ctx, bookID, req.ActualPrice, req.PromotionalText); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/books/{book_id}/promotion
func (h *BooksHandler) RemovePromotion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID, ok := positiveIDParam(r, "book_id")
	if !ok {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_book_id", "book_id must be a positive integer")
		return
	}

	if err := h.catalog.RemovePromotion(ctx, bookID); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

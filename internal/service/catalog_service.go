package service

import (
	"context"
	"strings"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxStars = 5

type CatalogStore interface {
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	AddReview(ctx context.Context, review *domain.Review) error
	SetPromotion(ctx context.Context, bookID int64, actualPrice decimal.Decimal, text string) error
	RemovePromotion(ctx context.Context, bookID int64) error
}

type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

func NewCatalogService(store CatalogStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

func (s *CatalogService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	return s.store.GetBook(ctx, id)
}

// AddReview stores a review with 0 to 5 stars. The book's cached review
// fields are refreshed by the store in the same transaction.
func (s *CatalogService) AddReview(ctx context.Context, bookID int64, voterName string, numStars int, comment string) (*domain.Review, error) {
	voterName = strings.TrimSpace(voterName)
	if voterName == "" || numStars < 0 || numStars > maxStars {
		return nil, ErrInvalidReview
	}

	review := &domain.Review{
		BookID:    bookID,
		VoterName: voterName,
		NumStars:  numStars,
		Comment:   comment,
	}
	if err := s.store.AddReview(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info("review added",
		zap.Int64("book_id", bookID),
		zap.Int64("review_id", review.ID),
		zap.Int("stars", numStars))
	return review, nil
}

// AddPromotion sets a new selling price. Zero takes the book off sale.
func (s *CatalogService) AddPromotion(ctx context.Context, bookID int64, actualPrice decimal.Decimal, promotionalText string) error {
	if actualPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if err := s.store.SetPromotion(ctx, bookID, actualPrice, promotionalText); err != nil {
		return err
	}
	s.logger.Info("promotion set",
		zap.Int64("book_id", bookID),
		zap.String("actual_price", actualPrice.StringFixed(2)))
	return nil
}

func (s *CatalogService) RemovePromotion(ctx context.Context, bookID int64) error {
	if err := s.store.RemovePromotion(ctx, bookID); err != nil {
		return err
	}
	s.logger.Info("promotion removed", zap.Int64("book_id", bookID))
	return nil
}

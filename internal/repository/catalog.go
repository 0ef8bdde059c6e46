package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/shopspring/decimal"
)

// BookPrices looks up all requested books in one query. Ids with no matching
// book are absent from the result.
func (r *Repository) BookPrices(ctx context.Context, ids []int64) (map[int64]domain.BookPriceView, error) {
	result := make(map[int64]domain.BookPriceView, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, title, actual_price FROM books WHERE id IN (%s)`, placeholders(1, len(ids)))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query book prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.BookPriceView
		if err := rows.Scan(&v.BookID, &v.Title, &v.ActualPrice); err != nil {
			return nil, fmt.Errorf("failed to scan book price: %w", err)
		}
		result[v.BookID] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

func (r *Repository) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	query := `
		SELECT id, title, description, published_on, publisher, org_price, actual_price,
		       promotional_text, image_url, reviews_count, reviews_average_votes,
		       authors_ordered, last_updated_utc
		FROM books
		WHERE id = $1
	`

	b := &domain.Book{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.Title,
		&b.Description,
		&b.PublishedOn,
		&b.Publisher,
		&b.OrgPrice,
		&b.ActualPrice,
		&b.PromotionalText,
		&b.ImageURL,
		&b.Cache.ReviewsCount,
		&b.Cache.ReviewsAverageVotes,
		&b.Cache.AuthorsOrdered,
		&b.LastUpdatedUTC,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query book by id: %w", err)
	}
	b.Cache.BookID = b.ID
	return b, nil
}

// AddReview stores a review and refreshes the book's cached review fields in
// the same transaction.
func (r *Repository) AddReview(ctx context.Context, review *domain.Review) error {
	now := time.Now().UTC()
	return r.inTx(ctx, func(q querier) error {
		if err := bookExists(ctx, q, review.BookID); err != nil {
			return err
		}

		err := q.QueryRowContext(ctx,
			`INSERT INTO reviews (book_id, voter_name, num_stars, comment, last_updated_utc)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			review.BookID, review.VoterName, review.NumStars, review.Comment, now,
		).Scan(&review.ID)
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		stars, err := reviewStars(ctx, q, review.BookID)
		if err != nil {
			return err
		}

		_, err = q.ExecContext(ctx,
			`UPDATE books SET reviews_count = $1, reviews_average_votes = $2, last_updated_utc = $3 WHERE id = $4`,
			len(stars), domain.AverageVotes(stars), now, review.BookID)
		if err != nil {
			return fmt.Errorf("update review cache: %w", err)
		}
		return nil
	})
}

// SetPromotion changes the selling price. A zero price takes the book off sale.
func (r *Repository) SetPromotion(ctx context.Context, bookID int64, actualPrice decimal.Decimal, text string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE books SET actual_price = $1, promotional_text = $2, last_updated_utc = $3 WHERE id = $4`,
		actualPrice, text, time.Now().UTC(), bookID)
	if err != nil {
		return fmt.Errorf("set promotion: %w", err)
	}
	return expectOneRow(res, ErrBookNotFound)
}

// RemovePromotion restores the original price.
func (r *Repository) RemovePromotion(ctx context.Context, bookID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE books SET actual_price = org_price, promotional_text = '', last_updated_utc = $1 WHERE id = $2`,
		time.Now().UTC(), bookID)
	if err != nil {
		return fmt.Errorf("remove promotion: %w", err)
	}
	return expectOneRow(res, ErrBookNotFound)
}

func bookExists(ctx context.Context, q querier, bookID int64) error {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM books WHERE id = $1`, bookID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("query book by id: %w", err)
	}
	return nil
}

func reviewStars(ctx context.Context, q querier, bookID int64) ([]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT num_stars FROM reviews WHERE book_id = $1 ORDER BY id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var stars []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		stars = append(stars, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stars, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

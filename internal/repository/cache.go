package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
)

// ChangedBookIDs returns the ids of books whose cached fields may be stale
// because the book, one of its reviews, one of its authorships or one of its
// authors was updated after since.
func (r *Repository) ChangedBookIDs(ctx context.Context, since time.Time) ([]int64, error) {
	query := `
		SELECT id FROM books WHERE last_updated_utc > $1
		UNION
		SELECT book_id FROM reviews WHERE last_updated_utc > $1
		UNION
		SELECT book_id FROM book_authors WHERE last_updated_utc > $1
		UNION
		SELECT ba.book_id FROM book_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE a.last_updated_utc > $1
		ORDER BY 1
	`
	rows, err := r.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query changed books: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan changed book id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

func (r *Repository) LoadBookCacheState(ctx context.Context, bookID int64) (*domain.BookCacheState, error) {
	state := &domain.BookCacheState{Cached: domain.CacheFields{BookID: bookID}}

	err := r.db.QueryRowContext(ctx,
		`SELECT reviews_count, reviews_average_votes, authors_ordered, last_updated_utc FROM books WHERE id = $1`,
		bookID,
	).Scan(
		&state.Cached.ReviewsCount,
		&state.Cached.ReviewsAverageVotes,
		&state.Cached.AuthorsOrdered,
		&state.LastUpdatedUTC,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cached fields: %w", err)
	}

	stars, err := reviewStars(ctx, r.db, bookID)
	if err != nil {
		return nil, err
	}
	state.Stars = stars

	rows, err := r.db.QueryContext(ctx, `
		SELECT a.name FROM book_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE ba.book_id = $1
		ORDER BY ba.ord`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		state.AuthorNames = append(state.AuthorNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return state, nil
}

// SaveCacheFields overwrites the cached fields of every given book in a single
// transaction. last_updated_utc is left alone so repairs do not show up as
// changes on the next scan.
func (r *Repository) SaveCacheFields(ctx context.Context, fields []domain.CacheFields) error {
	return r.inTx(ctx, func(q querier) error {
		for _, f := range fields {
			_, err := q.ExecContext(ctx,
				`UPDATE books SET reviews_count = $1, reviews_average_votes = $2, authors_ordered = $3 WHERE id = $4`,
				f.ReviewsCount, f.ReviewsAverageVotes, f.AuthorsOrdered, f.BookID)
			if err != nil {
				return fmt.Errorf("update cached fields of book %d: %w", f.BookID, err)
			}
		}
		return nil
	})
}

package cachecheck

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"go.uber.org/zap"
)

const (
	FieldReviewsCount        = "reviews_count"
	FieldReviewsAverageVotes = "reviews_average_votes"
	FieldAuthorsOrdered      = "authors_ordered"
)

// Source is the catalog data the checker reconciles.
type Source interface {
	ChangedBookIDs(ctx context.Context, since time.Time) ([]int64, error)
	LoadBookCacheState(ctx context.Context, bookID int64) (*domain.BookCacheState, error)
	SaveCacheFields(ctx context.Context, fields []domain.CacheFields) error
}

// Discrepancy is one cached field that does not match its source rows.
type Discrepancy struct {
	BookID         int64     `json:"book_id" bson:"book_id"`
	Field          string    `json:"field" bson:"field"`
	Expected       string    `json:"expected" bson:"expected"`
	Actual         string    `json:"actual" bson:"actual"`
	LastUpdatedUTC time.Time `json:"last_updated_utc" bson:"last_updated_utc"`
}

type Report struct {
	StartedAt     time.Time     `json:"started_at"`
	Since         time.Time     `json:"since"`
	Fix           bool          `json:"fix"`
	BooksChecked  int           `json:"books_checked"`
	BooksFixed    int           `json:"books_fixed"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

type Checker struct {
	source     Source
	watermarks Watermark
	reporter   Reporter
	logger     *zap.Logger
	clock      func() time.Time
}

func NewChecker(source Source, watermarks Watermark, reporter Reporter, logger *zap.Logger) *Checker {
	return &Checker{
		source:     source,
		watermarks: watermarks,
		reporter:   reporter,
		logger:     logger,
		clock:      time.Now,
	}
}

// Run reconciles every book changed since the last successful run.
//
// Each discrepancy is reported. In fix mode the corrected fields of all books
// are saved in one batch once the scan completes. Cancellation is checked
// before each book; a cancelled run saves nothing and leaves the watermark
// where it was. The watermark moves to the run's start time only after the
// batch is saved.
func (c *Checker) Run(ctx context.Context, fix bool) (*Report, error) {
	start := c.clock().UTC()

	since, err := c.watermarks.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	ids, err := c.source.ChangedBookIDs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("find changed books: %w", err)
	}

	report := &Report{StartedAt: start, Since: since, Fix: fix}
	var fixes []domain.CacheFields

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			c.logger.Info("cache check cancelled",
				zap.Int("checked", report.BooksChecked),
				zap.Int("remaining", len(ids)-report.BooksChecked))
			return nil, err
		}

		state, err := c.source.LoadBookCacheState(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load cache state of book %d: %w", id, err)
		}
		report.BooksChecked++

		found := compare(state)
		if len(found) == 0 {
			continue
		}
		for _, d := range found {
			c.reporter.Report(ctx, d, fix)
		}
		report.Discrepancies = append(report.Discrepancies, found...)

		if fix {
			fixes = append(fixes, state.Recompute())
		}
	}

	if len(fixes) > 0 {
		if err := c.source.SaveCacheFields(ctx, fixes); err != nil {
			return nil, fmt.Errorf("save cache fixes: %w", err)
		}
		report.BooksFixed = len(fixes)
	}

	if err := c.watermarks.Set(ctx, start); err != nil {
		return nil, fmt.Errorf("advance watermark: %w", err)
	}

	c.logger.Info("cache check finished",
		zap.Bool("fix", fix),
		zap.Time("since", since),
		zap.Int("checked", report.BooksChecked),
		zap.Int("discrepancies", len(report.Discrepancies)),
		zap.Int("fixed", report.BooksFixed))
	return report, nil
}

func compare(state *domain.BookCacheState) []Discrepancy {
	want := state.Recompute()
	got := state.Cached

	var out []Discrepancy
	add := func(field, expected, actual string) {
		out = append(out, Discrepancy{
			BookID:         got.BookID,
			Field:          field,
			Expected:       expected,
			Actual:         actual,
			LastUpdatedUTC: state.LastUpdatedUTC,
		})
	}

	if want.ReviewsCount != got.ReviewsCount {
		add(FieldReviewsCount, strconv.Itoa(want.ReviewsCount), strconv.Itoa(got.ReviewsCount))
	}
	if !domain.SameAverage(want.ReviewsAverageVotes, got.ReviewsAverageVotes) {
		add(FieldReviewsAverageVotes, formatVotes(want.ReviewsAverageVotes), formatVotes(got.ReviewsAverageVotes))
	}
	if want.AuthorsOrdered != got.AuthorsOrdered {
		add(FieldAuthorsOrdered, want.AuthorsOrdered, got.AuthorsOrdered)
	}
	return out
}

func formatVotes(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsCancelled reports whether a Run ended because its context was done.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

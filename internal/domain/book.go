package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	ID              int64
	Title           string
	Description     string
	PublishedOn     time.Time
	Publisher       string
	OrgPrice        decimal.Decimal
	ActualPrice     decimal.Decimal
	PromotionalText string
	ImageURL        string
	LastUpdatedUTC  time.Time
	Cache           CacheFields
}

// CacheFields are denormalized from the book's reviews and authors.
type CacheFields struct {
	BookID              int64
	ReviewsCount        int
	ReviewsAverageVotes float64
	AuthorsOrdered      string
}

type Review struct {
	ID        int64
	BookID    int64
	VoterName string
	NumStars  int
	Comment   string
}

type Author struct {
	ID   int64
	Name string
}

// BookPriceView is the read-only projection used when pricing an order.
type BookPriceView struct {
	BookID      int64
	Title       string
	ActualPrice decimal.Decimal
}

// IsForSale reports whether the book can currently be ordered.
func (b BookPriceView) IsForSale() bool {
	return b.ActualPrice.IsPositive()
}

// BookCacheState pairs a book's stored cache fields with the source rows they derive from.
type BookCacheState struct {
	Cached         CacheFields
	Stars          []int
	AuthorNames    []string // in book_authors.ord order
	LastUpdatedUTC time.Time
}

// Recompute derives the cache fields from the source rows.
func (s BookCacheState) Recompute() CacheFields {
	return CacheFields{
		BookID:              s.Cached.BookID,
		ReviewsCount:        len(s.Stars),
		ReviewsAverageVotes: AverageVotes(s.Stars),
		AuthorsOrdered:      FormatAuthors(s.AuthorNames),
	}
}

func AverageVotes(stars []int) float64 {
	if len(stars) == 0 {
		return 0
	}
	total := 0
	for _, s := range stars {
		total += s
	}
	return float64(total) / float64(len(stars))
}

func FormatAuthors(names []string) string {
	return strings.Join(names, ", ")
}

// VotesTolerance bounds the difference accepted between a stored and a recomputed average.
const VotesTolerance = 1e-3

func SameAverage(a, b float64) bool {
	return math.Abs(a-b) <= VotesTolerance
}

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrOrderHasNoLines = errors.New("order must contain at least one line item")

// PricedLine is a basket line whose unit price has been resolved from the catalog.
type PricedLine struct {
	BookID    int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type OrderLine struct {
	BookID    int64           `json:"book_id"`
	LineNum   int             `json:"line_num"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is immutable once created. The only change allowed is the
// persistence key assigned by the store.
type Order struct {
	id             int64
	userID         uuid.UUID
	dateOrderedUTC time.Time
	lines          []OrderLine
}

// CreateOrder builds an order, numbering lines from 1 in input order.
// It returns the zero Order and ErrOrderHasNoLines when there is nothing to order.
func CreateOrder(userID uuid.UUID, priced []PricedLine, now time.Time) (Order, error) {
	lines := make([]OrderLine, 0, len(priced))
	for i, p := range priced {
		lines = append(lines, OrderLine{
			BookID:    p.BookID,
			LineNum:   i + 1,
			Quantity:  p.Quantity,
			UnitPrice: p.UnitPrice,
		})
	}
	if len(lines) == 0 {
		return Order{}, ErrOrderHasNoLines
	}

	return Order{
		userID:         userID,
		dateOrderedUTC: now.UTC(),
		lines:          lines,
	}, nil
}

// RestoreOrder rebuilds a persisted order.
func RestoreOrder(id int64, userID uuid.UUID, dateOrderedUTC time.Time, lines []OrderLine) Order {
	copied := make([]OrderLine, len(lines))
	copy(copied, lines)
	return Order{
		id:             id,
		userID:         userID,
		dateOrderedUTC: dateOrderedUTC.UTC(),
		lines:          copied,
	}
}

func (o *Order) AssignID(id int64) {
	o.id = id
}

func (o Order) ID() int64                 { return o.id }
func (o Order) UserID() uuid.UUID         { return o.userID }
func (o Order) DateOrderedUTC() time.Time { return o.dateOrderedUTC }

func (o Order) Lines() []OrderLine {
	lines := make([]OrderLine, len(o.lines))
	copy(lines, o.lines)
	return lines
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// IsZero reports whether o is the zero Order returned by a failed CreateOrder.
func (o Order) IsZero() bool {
	return len(o.lines) == 0
}

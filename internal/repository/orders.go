package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventOrderPlaced = "order_placed"

type orderPlacedLine struct {
	BookID    int64           `json:"book_id"`
	LineNum   int             `json:"line_num"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderPlacedPayload struct {
	OrderID        int64             `json:"order_id"`
	UserID         string            `json:"user_id"`
	DateOrderedUTC time.Time         `json:"date_ordered_utc"`
	Lines          []orderPlacedLine `json:"lines"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
}

// SaveOrder writes the order, its lines and an order_placed outbox event in
// one transaction, then assigns the generated id to order.
func (r *Repository) SaveOrder(ctx context.Context, order *domain.Order) error {
	var orderID int64
	err := r.inTx(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, date_ordered_utc) VALUES ($1, $2) RETURNING id`,
			order.UserID().String(), order.DateOrderedUTC(),
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		lines := order.Lines()
		payloadLines := make([]orderPlacedLine, 0, len(lines))
		for _, l := range lines {
			_, err := q.ExecContext(ctx,
				`INSERT INTO line_items (order_id, line_num, book_id, quantity, unit_price)
				 VALUES ($1, $2, $3, $4, $5)`,
				orderID, l.LineNum, l.BookID, l.Quantity, l.UnitPrice)
			if err != nil {
				return fmt.Errorf("insert line item %d: %w", l.LineNum, err)
			}
			payloadLines = append(payloadLines, orderPlacedLine(l))
		}

		payload, err := json.Marshal(orderPlacedPayload{
			OrderID:        orderID,
			UserID:         order.UserID().String(),
			DateOrderedUTC: order.DateOrderedUTC(),
			Lines:          payloadLines,
			TotalAmount:    order.Total(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal order payload: %w", err)
		}

		_, err = q.ExecContext(ctx,
			`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`,
			fmt.Sprint(orderID), EventOrderPlaced, string(payload), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.AssignID(orderID)
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.date_ordered_utc, l.line_num, l.book_id, l.quantity, l.unit_price
		FROM orders o
		JOIN line_items l ON l.order_id = o.id
		WHERE o.id = $1
		ORDER BY l.line_num
	`
	orders, err := r.queryOrders(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

// ListOrdersByUserID returns the user's orders, newest first.
func (r *Repository) ListOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.date_ordered_utc, l.line_num, l.book_id, l.quantity, l.unit_price
		FROM orders o
		JOIN line_items l ON l.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.date_ordered_utc DESC, o.id DESC, l.line_num
	`
	orders, err := r.queryOrders(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	return orders, nil
}

// queryOrders groups joined order/line rows, keeping the row order.
func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type header struct {
		userID  uuid.UUID
		ordered time.Time
		lines   []domain.OrderLine
	}
	var ids []int64
	byID := make(map[int64]*header)

	for rows.Next() {
		var (
			id      int64
			userID  uuid.UUID
			ordered time.Time
			line    domain.OrderLine
		)
		if err := rows.Scan(&id, &userID, &ordered, &line.LineNum, &line.BookID, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		h, ok := byID[id]
		if !ok {
			h = &header{userID: userID, ordered: ordered}
			byID[id] = h
			ids = append(ids, id)
		}
		h.lines = append(h.lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	orders := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		h := byID[id]
		o := domain.RestoreOrder(id, h.userID, h.ordered, h.lines)
		orders = append(orders, &o)
	}
	return orders, nil
}

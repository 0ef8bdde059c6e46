package basket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	delimiter   = ","
	MaxQuantity = 99
)

var (
	ErrCorruptBasket   = errors.New("basket cookie is corrupt")
	ErrItemNotFound    = errors.New("item not found in basket")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
)

type LineItem struct {
	BookID   int64 `json:"book_id"`
	Quantity int   `json:"quantity"`
}

// Basket is the pending order held in the client's cookie. The cookie value
// is the only copy; nothing is stored server side.
type Basket struct {
	UserID uuid.UUID
	lines  []LineItem
}

// New returns an empty basket for a new anonymous user.
func New() *Basket {
	return &Basket{UserID: uuid.New()}
}

// Decode rebuilds a basket from a cookie value. A nil value means no cookie
// was sent and yields a fresh empty basket.
func Decode(cookieValue *string) (*Basket, error) {
	if cookieValue == nil {
		return New(), nil
	}

	parts := strings.Split(*cookieValue, delimiter)
	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q: %v", ErrCorruptBasket, parts[0], err)
	}

	rest := parts[1:]
	if len(rest)%2 != 0 {
		return nil, fmt.Errorf("%w: unpaired line token", ErrCorruptBasket)
	}

	b := &Basket{UserID: userID, lines: make([]LineItem, 0, len(rest)/2)}
	for i := 0; i < len(rest); i += 2 {
		bookID, err := strconv.ParseInt(rest[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: book id %q", ErrCorruptBasket, rest[i])
		}
		quantity, err := strconv.Atoi(rest[i+1])
		if err != nil || quantity < 1 || quantity > MaxQuantity {
			return nil, fmt.Errorf("%w: quantity %q", ErrCorruptBasket, rest[i+1])
		}
		b.lines = append(b.lines, LineItem{BookID: bookID, Quantity: quantity})
	}

	return b, nil
}

// Encode writes the user id as 32 hex digits followed by ",bookID,quantity" per line.
func (b *Basket) Encode() string {
	var sb strings.Builder
	sb.WriteString(strings.ReplaceAll(b.UserID.String(), "-", ""))
	for _, l := range b.lines {
		sb.WriteString(delimiter)
		sb.WriteString(strconv.FormatInt(l.BookID, 10))
		sb.WriteString(delimiter)
		sb.WriteString(strconv.Itoa(l.Quantity))
	}
	return sb.String()
}

func (b *Basket) Lines() []LineItem {
	lines := make([]LineItem, len(b.lines))
	copy(lines, b.lines)
	return lines
}

func (b *Basket) Len() int {
	return len(b.lines)
}

func (b *Basket) AddLine(line LineItem) error {
	if line.Quantity < 1 || line.Quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	b.lines = append(b.lines, line)
	return nil
}

func (b *Basket) RemoveLine(index int) error {
	if index < 0 || index >= len(b.lines) {
		return fmt.Errorf("%w: index %d", ErrItemNotFound, index)
	}
	b.lines = append(b.lines[:index], b.lines[index+1:]...)
	return nil
}

func (b *Basket) ClearAll() {
	b.lines = nil
}

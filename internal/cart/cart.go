package cart

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidItem        = errors.New("invalid cart item")
	ErrItemNotFound       = errors.New("item not found in cart")
	ErrStockLimitExceeded = errors.New("quantity exceeds available stock")
)

// MaxLineQuantity caps a single line so quantities and totals can never overflow.
const MaxLineQuantity = 9999

// Item is what the catalog hands to the cart when a customer adds something.
type Item struct {
	ID         string
	Name       string
	UnitPrice  decimal.Decimal
	StockLimit int
}

// Cart is a single customer's cart. It is owned by one logical actor and is not
// safe for concurrent use. Subtotal and ItemCount are recomputed from the lines
// after every mutation.
type Cart struct {
	lines     map[string]*domain.CartLine
	subtotal  decimal.Decimal
	itemCount int
}

func New() *Cart {
	return &Cart{lines: make(map[string]*domain.CartLine)}
}

// FromLines rebuilds a cart from persisted lines. Duplicate item ids are merged.
func FromLines(lines []domain.CartLine) (*Cart, error) {
	c := New()
	for _, l := range lines {
		if err := validateLine(l); err != nil {
			return nil, err
		}
		if existing, ok := c.lines[l.ItemID]; ok {
			if l.Quantity > MaxLineQuantity-existing.Quantity {
				return nil, fmt.Errorf("%w: %s exceeds %d", ErrInvalidQuantity, l.ItemID, MaxLineQuantity)
			}
			existing.Quantity += l.Quantity
			continue
		}
		line := l
		c.lines[l.ItemID] = &line
	}
	c.recompute()
	return c, nil
}

// AddItem increments an existing line by qty or creates a new one.
func (c *Cart) AddItem(item Item, qty int) error {
	if qty < 1 || qty > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	if item.ID == "" {
		return fmt.Errorf("%w: empty item id", ErrInvalidItem)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: negative unit price for %s", ErrInvalidItem, item.ID)
	}
	if item.StockLimit < 0 {
		return fmt.Errorf("%w: negative stock limit for %s", ErrInvalidItem, item.ID)
	}

	if line, ok := c.lines[item.ID]; ok {
		if qty > MaxLineQuantity-line.Quantity {
			return fmt.Errorf("%w: %s would exceed %d", ErrInvalidQuantity, item.ID, MaxLineQuantity)
		}
		next := line.Quantity + qty
		if exceedsStock(item.StockLimit, next) {
			return fmt.Errorf("%w: %s has %d in stock", ErrStockLimitExceeded, item.ID, item.StockLimit)
		}
		line.Quantity = next
		// catalog data on the latest add wins
		line.UnitPrice = item.UnitPrice
		line.StockLimit = item.StockLimit
		if item.Name != "" {
			line.Name = item.Name
		}
	} else {
		if exceedsStock(item.StockLimit, qty) {
			return fmt.Errorf("%w: %s has %d in stock", ErrStockLimitExceeded, item.ID, item.StockLimit)
		}
		c.lines[item.ID] = &domain.CartLine{
			ItemID:     item.ID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   qty,
			StockLimit: item.StockLimit,
		}
	}

	c.recompute()
	return nil
}

func (c *Cart) RemoveItem(itemID string) error {
	if _, ok := c.lines[itemID]; !ok {
		return ErrItemNotFound
	}
	delete(c.lines, itemID)
	c.recompute()
	return nil
}

// SetQuantity replaces a line's quantity. qty <= 0 removes the line.
func (c *Cart) SetQuantity(itemID string, qty int) error {
	line, ok := c.lines[itemID]
	if !ok {
		return ErrItemNotFound
	}
	if qty <= 0 {
		return c.RemoveItem(itemID)
	}
	if qty > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	if exceedsStock(line.StockLimit, qty) {
		return fmt.Errorf("%w: %s has %d in stock", ErrStockLimitExceeded, itemID, line.StockLimit)
	}
	line.Quantity = qty
	c.recompute()
	return nil
}

func (c *Cart) Clear() {
	c.lines = make(map[string]*domain.CartLine)
	c.recompute()
}

func (c *Cart) QuantityOf(itemID string) int {
	if line, ok := c.lines[itemID]; ok {
		return line.Quantity
	}
	return 0
}

// Lines returns a copy of the lines ordered by item id.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func (c *Cart) Subtotal() decimal.Decimal { return c.subtotal }

func (c *Cart) ItemCount() int { return c.itemCount }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) recompute() {
	subtotal := decimal.Zero
	count := 0
	for _, l := range c.lines {
		subtotal = subtotal.Add(l.LineTotal())
		count += l.Quantity
	}
	c.subtotal = subtotal
	c.itemCount = count
}

func exceedsStock(limit, qty int) bool {
	return limit > 0 && qty > limit
}

func validateLine(l domain.CartLine) error {
	if l.ItemID == "" {
		return fmt.Errorf("%w: empty item id", ErrInvalidItem)
	}
	if l.Quantity < 1 || l.Quantity > MaxLineQuantity {
		return fmt.Errorf("%w: %s has quantity %d", ErrInvalidQuantity, l.ItemID, l.Quantity)
	}
	if l.UnitPrice.IsNegative() || l.StockLimit < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidItem, l.ItemID)
	}
	return nil
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a single item in a customer's cart. Lines are unique per ItemID.
type CartLine struct {
	ItemID     string          `json:"item_id" bson:"item_id"`
	Name       string          `json:"name,omitempty" bson:"name,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price" bson:"unit_price"`
	Quantity   int             `json:"quantity" bson:"quantity"`
	StockLimit int             `json:"stock_limit" bson:"stock_limit"` // 0 means unlimited
}

// LineTotal returns unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSlot is the durable record holding a customer's serialized cart.
type CartSlot struct {
	Key       string    `bson:"_id"`
	Snapshot  []byte    `bson:"snapshot"`
	UpdatedAt time.Time `bson:"updated_at"`
}

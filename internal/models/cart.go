package models

import "github.com/shopspring/decimal"

// ProductVariant is the purchasable unit carrying its own price and stock.
type ProductVariant struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	ImageRef    string          `json:"imageRef"`
}

// DisplayName renders the "<size> - <color>" label frozen into order lines.
func (v ProductVariant) DisplayName() string {
	return v.Size + " - " + v.Color
}

type CartLine struct {
	ID        string          `json:"id"`
	VariantID string          `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Variant   *ProductVariant `json:"variant,omitempty"`
}

// Cart belongs to exactly one user. Placing an order empties Lines but keeps the cart.
type Cart struct {
	ID     string     `json:"id"`
	UserID string     `json:"userId"`
	Lines  []CartLine `json:"lines"`
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

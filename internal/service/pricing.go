package service

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/models"
)

type QuoteLine struct {
	Variant  models.ProductVariant
	Quantity int
	Subtotal decimal.Decimal
}

// Quote is a priced snapshot of a cart taken from live variant data.
type Quote struct {
	Lines    []QuoteLine
	Subtotal decimal.Decimal
}

// Snapshot freezes the quoted line into an order line.
func (l QuoteLine) Snapshot(id, orderID string) models.OrderLine {
	return models.OrderLine{
		ID:           id,
		OrderID:      orderID,
		ProductID:    l.Variant.ProductID,
		VariantID:    l.Variant.ID,
		ProductName:  l.Variant.ProductName,
		ProductImage: l.Variant.ImageRef,
		VariantName:  l.Variant.DisplayName(),
		Price:        l.Variant.Price,
		Quantity:     l.Quantity,
		Subtotal:     l.Subtotal,
	}
}

// PricingEngine prices cart lines at current variant prices and checks
// that each line's stock covers its quantity.
type PricingEngine struct{}

func (PricingEngine) Quote(cart models.Cart) (Quote, error) {
	if cart.Empty() {
		return Quote{}, apperr.Client(apperr.CodeEmptyCart, "cart is empty", http.StatusBadRequest)
	}
	q := Quote{Subtotal: decimal.Zero, Lines: make([]QuoteLine, 0, len(cart.Lines))}
	for _, line := range cart.Lines {
		if line.Variant == nil {
			return Quote{}, apperr.Client(apperr.CodeNotFound,
				fmt.Sprintf("product variant %s no longer exists", line.VariantID), http.StatusNotFound)
		}
		if line.Quantity <= 0 {
			return Quote{}, apperr.Client(apperr.CodeInvalidInput, "cart line quantity must be positive", http.StatusBadRequest)
		}
		if line.Variant.Stock < line.Quantity {
			return Quote{}, apperr.InsufficientStock(line.Variant.ID)
		}
		sub := line.Variant.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		q.Lines = append(q.Lines, QuoteLine{Variant: *line.Variant, Quantity: line.Quantity, Subtotal: sub})
		q.Subtotal = q.Subtotal.Add(sub)
	}
	return q, nil
}

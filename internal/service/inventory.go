package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

// InventoryGuard reserves and releases variant stock through the guarded
// repository updates. It holds no state and must run inside the caller's
// transaction.
type InventoryGuard struct{}

// Reserve decrements stock by qty, failing with an insufficient-stock client
// error when that would drive it below zero.
func (InventoryGuard) Reserve(ctx context.Context, variants repository.VariantRepository, variantID string, qty int) error {
	if qty <= 0 {
		return apperr.Client(apperr.CodeInvalidInput, "quantity must be positive", http.StatusBadRequest)
	}
	err := variants.DecrementStock(ctx, variantID, qty)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperr.InsufficientStock(variantID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Client(apperr.CodeNotFound, "product variant no longer exists", http.StatusNotFound)
	}
	return err
}

// Release adds qty back to stock.
func (InventoryGuard) Release(ctx context.Context, variants repository.VariantRepository, variantID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	return variants.IncrementStock(ctx, variantID, qty)
}

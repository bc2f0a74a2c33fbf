package service

import (
	"errors"
	"net/http"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

// mapStoreError converts repository errors into apperr values. Errors that
// already are *apperr.Error pass through unchanged.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperr.InsufficientStock("")
	case errors.Is(err, repository.ErrVoucherExhausted):
		return apperr.Client(apperr.CodeVoucherExhausted, "voucher has no remaining uses", http.StatusBadRequest)
	case errors.Is(err, repository.ErrStatusConflict):
		return apperr.Client(apperr.CodeConflict, "order was modified concurrently, please retry", http.StatusConflict)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Client(apperr.CodeConflict, "resource was modified concurrently, please retry", http.StatusConflict)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("resource not found")
	}
	return apperr.Unavailable(err)
}

// errorCode labels err for metrics and logs.
func errorCode(err error) string {
	if e, ok := apperr.As(err); ok {
		return string(e.Code)
	}
	return string(apperr.CodeInternal)
}

package models

import "github.com/shopspring/decimal"

// VoucherResolution is the outcome of the silent checkout path. A zero
// VoucherID means no voucher was applied.
type VoucherResolution struct {
	VoucherID      string          `json:"voucherId,omitempty"`
	Code           string          `json:"code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

func (r VoucherResolution) Applied() bool {
	return r.VoucherID != ""
}

type AppliedVoucher struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
}

// VoucherApplication is returned by the explicit pre-checkout path.
type VoucherApplication struct {
	Voucher        AppliedVoucher  `json:"voucher"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}

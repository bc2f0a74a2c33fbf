package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// ParseDiscountType accepts the canonical names plus the legacy "FIXED" alias.
func ParseDiscountType(s string) (DiscountType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(DiscountPercentage):
		return DiscountPercentage, true
	case string(DiscountFixedAmount), "FIXED":
		return DiscountFixedAmount, true
	}
	return "", false
}

type Voucher struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	DiscountType  DiscountType     `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MinOrderValue decimal.Decimal  `json:"minOrderValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	MaxUsage      int              `json:"maxUsage"`
	CurrentUsage  int              `json:"currentUsage"`
	IsActive      bool             `json:"isActive"`
	StartDate     time.Time        `json:"startDate"`
	EndDate       time.Time        `json:"endDate"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// InWindow reports whether now falls inside [StartDate, EndDate].
func (v Voucher) InWindow(now time.Time) bool {
	return !now.Before(v.StartDate) && !now.After(v.EndDate)
}

func (v Voucher) HasCapacity() bool {
	return v.CurrentUsage < v.MaxUsage
}

type VoucherFilter struct {
	Query  string
	Limit  int
	Offset int
}

type VoucherStats struct {
	Voucher
	RemainingUsage  int `json:"remainingUsage"`
	UsagePercentage int `json:"usagePercentage"`
	TotalOrders     int `json:"totalOrders"`
}

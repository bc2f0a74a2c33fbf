package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipping   OrderStatus = "SHIPPING"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderProcessing,
	OrderShipping,
	OrderDelivered,
	OrderCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type PaymentStatus string

const PaymentPending PaymentStatus = "PENDING"

// OrderLine is an immutable snapshot of one purchased variant.
type OrderLine struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	ProductID    string          `json:"productId"`
	VariantID    string          `json:"variantId,omitempty"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage"`
	VariantName  string          `json:"variantName"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	UserID          string          `json:"userId"`
	AddressID       string          `json:"addressId"`
	PaymentMethodID string          `json:"paymentMethodId"`
	VoucherID       string          `json:"voucherId,omitempty"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	VoucherDiscount decimal.Decimal `json:"voucherDiscount"`
	Total           decimal.Decimal `json:"total"`
	Note            string          `json:"note,omitempty"`
	AdminNote       string          `json:"adminNote,omitempty"`
	CancelReason    string          `json:"cancelReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	ConfirmedAt     *time.Time      `json:"confirmedAt,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty"`

	Lines         []OrderLine    `json:"lines,omitempty"`
	Address       *Address       `json:"address,omitempty"`
	PaymentMethod *PaymentMethod `json:"paymentMethod,omitempty"`
	Voucher       *Voucher       `json:"voucher,omitempty"`
	User          *UserSummary   `json:"user,omitempty"`
}

// StatusUpdate is applied only when the stored status still equals From.
type StatusUpdate struct {
	OrderID      string
	From         OrderStatus
	To           OrderStatus
	At           time.Time
	AdminNote    *string
	CancelReason *string
}

type OrderFilter struct {
	UserID string
	Status OrderStatus
	Query  string
	Limit  int
	Offset int
}

type Pagination struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
}

// NewPagination derives TotalPages as ceil(total/limit).
func NewPagination(total, limit, offset int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, TotalPages: pages, Limit: limit, Offset: offset}
}

type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type OrderStats struct {
	Pending     int             `json:"pending"`
	Confirmed   int             `json:"confirmed"`
	Processing  int             `json:"processing"`
	Shipping    int             `json:"shipping"`
	Delivered   int             `json:"delivered"`
	Cancelled   int             `json:"cancelled"`
	TotalOrders int             `json:"totalOrders"`
	TotalSpent  decimal.Decimal `json:"totalSpent"`
}

// Add folds a per-status count into the stats.
func (s *OrderStats) Add(status OrderStatus, n int) {
	switch status {
	case OrderPending:
		s.Pending += n
	case OrderConfirmed:
		s.Confirmed += n
	case OrderProcessing:
		s.Processing += n
	case OrderShipping:
		s.Shipping += n
	case OrderDelivered:
		s.Delivered += n
	case OrderCancelled:
		s.Cancelled += n
	default:
		return
	}
	s.TotalOrders += n
}

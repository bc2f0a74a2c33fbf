package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository/memory"
)

// seedDemo loads a customer with a filled cart and two vouchers so the
// in-memory backend can be exercised end to end.
func seedDemo(store *memory.Store, now time.Time) {
	store.PutUser(models.UserSummary{ID: "demo-user", UserName: "demo", Email: "demo@example.com", PhoneNumber: "0900000000"})
	store.PutAddress(models.Address{
		ID: "demo-address", UserID: "demo-user", FullName: "Demo Customer", Phone: "0900000000",
		AddressLine: "12 Hang Bai", District: "Hoan Kiem", City: "Hanoi", IsDefault: true,
	})
	store.PutPaymentMethod(models.PaymentMethod{ID: "cod", Name: "Cash on delivery", Code: "COD", IsActive: true})
	store.PutPaymentMethod(models.PaymentMethod{ID: "bank", Name: "Bank transfer", Code: "BANK", IsActive: true})

	store.PutVariant(models.ProductVariant{
		ID: "tee-m-black", ProductID: "tee", ProductName: "Basic tee", Price: decimal.NewFromInt(100000),
		Stock: 5, Size: "M", Color: "Black", ImageRef: "tee-black.jpg",
	})
	store.PutVariant(models.ProductVariant{
		ID: "tee-l-white", ProductID: "tee", ProductName: "Basic tee", Price: decimal.NewFromInt(120000),
		Stock: 10, Size: "L", Color: "White", ImageRef: "tee-white.jpg",
	})

	maxDiscount := decimal.NewFromInt(50000)
	store.PutVoucher(models.Voucher{
		ID: "welcome10", Code: "WELCOME10", Name: "Welcome discount", DiscountType: models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10), MinOrderValue: decimal.NewFromInt(100000), MaxDiscount: &maxDiscount,
		MaxUsage: 100, IsActive: true, StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(1, 0, 0),
		CreatedAt: now, UpdatedAt: now,
	})
	store.PutVoucher(models.Voucher{
		ID: "freeship", Code: "FREESHIP", Name: "Free shipping", DiscountType: models.DiscountFixedAmount,
		DiscountValue: decimal.NewFromInt(30000), MinOrderValue: decimal.NewFromInt(200000),
		MaxUsage: 50, IsActive: true, StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 3, 0),
		CreatedAt: now, UpdatedAt: now,
	})

	store.PutCart(models.Cart{ID: "demo-cart", UserID: "demo-user", Lines: []models.CartLine{
		{ID: "demo-line-1", VariantID: "tee-m-black", Quantity: 2},
	}})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

var hundred = decimal.NewFromInt(100)

const defaultVoucherLifetime = 365 * 24 * time.Hour

type VoucherServiceDeps struct {
	Store  repository.Store
	Logger *zap.Logger
	Clock  func() time.Time
	NewID  func() string
}

// VoucherService resolves discount codes for checkout and backs the
// voucher endpoints.
type VoucherService struct {
	store  repository.Store
	logger *zap.Logger
	clock  func() time.Time
	newID  func() string
}

func NewVoucherService(deps VoucherServiceDeps) (*VoucherService, error) {
	if deps.Store == nil {
		return nil, errors.New("voucher service: store is required")
	}
	s := &VoucherService{
		store:  deps.Store,
		logger: deps.Logger,
		clock:  deps.Clock,
		newID:  deps.NewID,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

func (s *VoucherService) now() time.Time {
	return s.clock().UTC()
}

// ComputeDiscount applies the voucher rule to subtotal. The result is
// clamped by MaxDiscount when set and never exceeds subtotal.
func ComputeDiscount(v models.Voucher, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch v.DiscountType {
	case models.DiscountPercentage:
		discount = subtotal.Mul(v.DiscountValue).Div(hundred).Round(2)
	case models.DiscountFixedAmount:
		discount = v.DiscountValue
	default:
		return decimal.Zero
	}
	if v.MaxDiscount != nil && v.MaxDiscount.IsPositive() && discount.GreaterThan(*v.MaxDiscount) {
		discount = *v.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount
}

// checkVoucher runs the eligibility rules in their fixed order. A nil
// amount skips the minimum-order rule.
func checkVoucher(v models.Voucher, amount *decimal.Decimal, now time.Time) *apperr.Error {
	if !v.IsActive {
		return apperr.Client(apperr.CodeVoucherInactive, "voucher is no longer active", http.StatusBadRequest)
	}
	if now.Before(v.StartDate) {
		return apperr.Client(apperr.CodeVoucherNotStarted, "voucher is not yet valid", http.StatusBadRequest)
	}
	if now.After(v.EndDate) {
		return apperr.Client(apperr.CodeVoucherExpired, "voucher has expired", http.StatusBadRequest)
	}
	if !v.HasCapacity() {
		return apperr.Client(apperr.CodeVoucherExhausted, "voucher has no remaining uses", http.StatusBadRequest)
	}
	if amount != nil && amount.LessThan(v.MinOrderValue) {
		return apperr.Client(apperr.CodeMinOrderNotMet,
			fmt.Sprintf("order must be at least %s to use this voucher", v.MinOrderValue.StringFixed(0)), http.StatusBadRequest)
	}
	return nil
}

func voucherNotFound() *apperr.Error {
	return apperr.Client(apperr.CodeVoucherNotFound, "voucher code does not exist", http.StatusBadRequest)
}

// Resolve is the checkout path: an unknown or ineligible code yields an
// empty resolution instead of an error. Store failures still surface.
func (s *VoucherService) Resolve(ctx context.Context, vouchers repository.VoucherRepository, code string, subtotal decimal.Decimal) (models.VoucherResolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.VoucherResolution{DiscountAmount: decimal.Zero}, nil
	}

	v, err := vouchers.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("voucher not applied", zap.String("code", code), zap.String("reason", string(apperr.CodeVoucherNotFound)))
			return models.VoucherResolution{DiscountAmount: decimal.Zero}, nil
		}
		return models.VoucherResolution{}, fmt.Errorf("resolve voucher: %w", err)
	}

	if verr := checkVoucher(v, &subtotal, s.now()); verr != nil {
		s.logger.Debug("voucher not applied", zap.String("code", code), zap.String("reason", string(verr.Code)))
		return models.VoucherResolution{DiscountAmount: decimal.Zero}, nil
	}

	return models.VoucherResolution{
		VoucherID:      v.ID,
		Code:           v.Code,
		DiscountAmount: ComputeDiscount(v, subtotal),
	}, nil
}

// Apply is the pre-checkout path: every failed rule is reported to the caller.
func (s *VoucherService) Apply(ctx context.Context, code string, orderValue decimal.Decimal) (models.VoucherApplication, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.VoucherApplication{}, apperr.Client(apperr.CodeInvalidInput, "voucher code is required", http.StatusBadRequest)
	}
	if orderValue.IsNegative() {
		return models.VoucherApplication{}, apperr.Client(apperr.CodeInvalidInput, "order value must not be negative", http.StatusBadRequest)
	}

	v, err := s.store.Repos().Vouchers().GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.VoucherApplication{}, voucherNotFound()
		}
		return models.VoucherApplication{}, mapStoreError(err)
	}
	if verr := checkVoucher(v, &orderValue, s.now()); verr != nil {
		return models.VoucherApplication{}, verr
	}

	discount := ComputeDiscount(v, orderValue)
	return models.VoucherApplication{
		Voucher: models.AppliedVoucher{
			ID:            v.ID,
			Code:          v.Code,
			Name:          v.Name,
			DiscountType:  v.DiscountType,
			DiscountValue: v.DiscountValue,
		},
		DiscountAmount: discount,
		FinalAmount:    orderValue.Sub(discount),
	}, nil
}

// Validate checks a code without an order value.
func (s *VoucherService) Validate(ctx context.Context, code string) (models.Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Voucher{}, apperr.Client(apperr.CodeInvalidInput, "voucher code is required", http.StatusBadRequest)
	}
	v, err := s.store.Repos().Vouchers().GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Voucher{}, voucherNotFound()
		}
		return models.Voucher{}, mapStoreError(err)
	}
	if verr := checkVoucher(v, nil, s.now()); verr != nil {
		return models.Voucher{}, verr
	}
	return v, nil
}

func (s *VoucherService) ListAvailable(ctx context.Context, orderValue decimal.Decimal) ([]models.Voucher, error) {
	list, err := s.store.Repos().Vouchers().ListAvailable(ctx, orderValue, s.now())
	if err != nil {
		return nil, mapStoreError(err)
	}
	if list == nil {
		list = []models.Voucher{}
	}
	return list, nil
}

type CreateVoucherInput struct {
	Code          string
	Name          string
	Description   string
	DiscountType  string
	DiscountValue decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   *decimal.Decimal
	MaxUsage      int
	IsActive      *bool
	StartDate     *time.Time
	EndDate       *time.Time
}

func invalid(msg string) *apperr.Error {
	return apperr.Client(apperr.CodeInvalidInput, msg, http.StatusBadRequest)
}

// validateVoucher checks the editable fields of a complete voucher record.
func validateVoucher(v models.Voucher) error {
	switch {
	case len(v.Code) < 3:
		return invalid("voucher code must be at least 3 characters")
	case len(v.Name) < 5:
		return invalid("voucher name must be at least 5 characters")
	case !v.DiscountValue.IsPositive():
		return invalid("discount value must be greater than 0")
	case v.DiscountType == models.DiscountPercentage && (!v.DiscountValue.IsInteger() || v.DiscountValue.GreaterThan(hundred)):
		return invalid("percentage vouchers must be a whole number from 1 to 100")
	case v.MaxUsage <= 0:
		return invalid("max usage must be greater than 0")
	case v.MinOrderValue.IsNegative():
		return invalid("minimum order value must not be negative")
	case v.MaxDiscount != nil && !v.MaxDiscount.IsPositive():
		return invalid("max discount must be greater than 0")
	case !v.EndDate.After(v.StartDate):
		return invalid("end date must be after start date")
	}
	return nil
}

func duplicateCode() *apperr.Error {
	return apperr.Client(apperr.CodeDuplicateCode, "voucher code already exists", http.StatusBadRequest)
}

// ensureCodeFree reports duplicate_code when another voucher holds code.
func ensureCodeFree(ctx context.Context, vouchers repository.VoucherRepository, code, selfID string) error {
	existing, err := vouchers.GetByCode(ctx, code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return mapStoreError(err)
	case existing.ID != selfID:
		return duplicateCode()
	}
	return nil
}

func (s *VoucherService) Create(ctx context.Context, in CreateVoucherInput) (models.Voucher, error) {
	dt, ok := models.ParseDiscountType(in.DiscountType)
	if !ok {
		return models.Voucher{}, invalid("discount type must be PERCENTAGE or FIXED_AMOUNT")
	}

	now := s.now()
	start := now
	if in.StartDate != nil {
		start = in.StartDate.UTC()
	}
	end := start.Add(defaultVoucherLifetime)
	if in.EndDate != nil {
		end = in.EndDate.UTC()
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	v := models.Voucher{
		ID:            s.newID(),
		Code:          strings.TrimSpace(in.Code),
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		DiscountType:  dt,
		DiscountValue: in.DiscountValue,
		MinOrderValue: in.MinOrderValue,
		MaxDiscount:   in.MaxDiscount,
		MaxUsage:      in.MaxUsage,
		IsActive:      active,
		StartDate:     start,
		EndDate:       end,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := validateVoucher(v); err != nil {
		return models.Voucher{}, err
	}

	vouchers := s.store.Repos().Vouchers()
	if err := ensureCodeFree(ctx, vouchers, v.Code, ""); err != nil {
		return models.Voucher{}, err
	}
	if err := vouchers.Insert(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.Voucher{}, duplicateCode()
		}
		return models.Voucher{}, mapStoreError(err)
	}

	s.logger.Info("voucher created", zap.String("voucher_id", v.ID), zap.String("code", v.Code))
	return v, nil
}

// UpdateVoucherInput carries a partial update; nil fields keep their value.
// A zero MaxDiscount removes the cap.
type UpdateVoucherInput struct {
	Code          *string
	Name          *string
	Description   *string
	DiscountType  *string
	DiscountValue *decimal.Decimal
	MinOrderValue *decimal.Decimal
	MaxDiscount   *decimal.Decimal
	MaxUsage      *int
	IsActive      *bool
	StartDate     *time.Time
	EndDate       *time.Time
}

func (in UpdateVoucherInput) apply(v models.Voucher) (models.Voucher, error) {
	if in.Code != nil {
		v.Code = strings.TrimSpace(*in.Code)
	}
	if in.Name != nil {
		v.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		v.Description = strings.TrimSpace(*in.Description)
	}
	if in.DiscountType != nil {
		dt, ok := models.ParseDiscountType(*in.DiscountType)
		if !ok {
			return v, invalid("discount type must be PERCENTAGE or FIXED_AMOUNT")
		}
		v.DiscountType = dt
	}
	if in.DiscountValue != nil {
		v.DiscountValue = *in.DiscountValue
	}
	if in.MinOrderValue != nil {
		v.MinOrderValue = *in.MinOrderValue
	}
	if in.MaxDiscount != nil {
		if in.MaxDiscount.IsZero() {
			v.MaxDiscount = nil
		} else {
			md := *in.MaxDiscount
			v.MaxDiscount = &md
		}
	}
	if in.MaxUsage != nil {
		v.MaxUsage = *in.MaxUsage
	}
	if in.IsActive != nil {
		v.IsActive = *in.IsActive
	}
	if in.StartDate != nil {
		v.StartDate = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		v.EndDate = in.EndDate.UTC()
	}
	return v, nil
}

// Update edits a voucher. A changed code must stay unique, and max usage
// cannot drop below the uses already consumed. Usage itself is never edited.
func (s *VoucherService) Update(ctx context.Context, id string, in UpdateVoucherInput) (models.Voucher, error) {
	vouchers := s.store.Repos().Vouchers()
	current, err := vouchers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Voucher{}, apperr.NotFound("voucher not found")
		}
		return models.Voucher{}, mapStoreError(err)
	}

	v, err := in.apply(current)
	if err != nil {
		return models.Voucher{}, err
	}
	if err := validateVoucher(v); err != nil {
		return models.Voucher{}, err
	}
	if v.MaxUsage < current.CurrentUsage {
		return models.Voucher{}, invalid(fmt.Sprintf("max usage cannot be below the %d uses already consumed", current.CurrentUsage))
	}
	if v.Code != current.Code {
		if err := ensureCodeFree(ctx, vouchers, v.Code, v.ID); err != nil {
			return models.Voucher{}, err
		}
	}
	v.UpdatedAt = s.now()

	if err := vouchers.Update(ctx, v); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return models.Voucher{}, duplicateCode()
		case errors.Is(err, repository.ErrNotFound):
			return models.Voucher{}, apperr.NotFound("voucher not found")
		}
		return models.Voucher{}, mapStoreError(err)
	}

	updated, err := vouchers.GetByID(ctx, id)
	if err != nil {
		return v, nil
	}
	s.logger.Info("voucher updated", zap.String("voucher_id", id), zap.String("code", updated.Code))
	return updated, nil
}

// Delete removes a voucher. Orders that used it keep their discount amounts
// and drop the reference.
func (s *VoucherService) Delete(ctx context.Context, id string) error {
	if err := s.store.Repos().Vouchers().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("voucher not found")
		}
		return mapStoreError(err)
	}
	s.logger.Info("voucher deleted", zap.String("voucher_id", id))
	return nil
}

func (s *VoucherService) List(ctx context.Context, q ListQuery) (models.Page[models.Voucher], error) {
	q = q.normalize()
	list, total, err := s.store.Repos().Vouchers().List(ctx, models.VoucherFilter{Query: q.Search, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return models.Page[models.Voucher]{}, mapStoreError(err)
	}
	if list == nil {
		list = []models.Voucher{}
	}
	return models.Page[models.Voucher]{Data: list, Pagination: models.NewPagination(total, q.Limit, q.Offset)}, nil
}

func (s *VoucherService) Stats(ctx context.Context, id string) (models.VoucherStats, error) {
	repos := s.store.Repos()
	v, err := repos.Vouchers().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.VoucherStats{}, apperr.NotFound("voucher not found")
		}
		return models.VoucherStats{}, mapStoreError(err)
	}
	orders, err := repos.Vouchers().CountOrders(ctx, id)
	if err != nil {
		return models.VoucherStats{}, mapStoreError(err)
	}

	stats := models.VoucherStats{
		Voucher:        v,
		RemainingUsage: v.MaxUsage - v.CurrentUsage,
		TotalOrders:    orders,
	}
	if v.MaxUsage > 0 {
		pct := decimal.NewFromInt(int64(v.CurrentUsage)).Mul(hundred).Div(decimal.NewFromInt(int64(v.MaxUsage)))
		stats.UsagePercentage = int(pct.Round(0).IntPart())
	}
	return stats, nil
}

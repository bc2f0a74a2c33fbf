package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

type repos struct {
	run func(func(*state) error) error
}

func (r *repos) Variants() repository.VariantRepository             { return variantRepo{r} }
func (r *repos) Vouchers() repository.VoucherRepository             { return voucherRepo{r} }
func (r *repos) Carts() repository.CartRepository                   { return cartRepo{r} }
func (r *repos) Addresses() repository.AddressRepository            { return addressRepo{r} }
func (r *repos) PaymentMethods() repository.PaymentMethodRepository { return paymentMethodRepo{r} }
func (r *repos) Users() repository.UserRepository                   { return userRepo{r} }
func (r *repos) Orders() repository.OrderRepository                 { return orderRepo{r} }
func (r *repos) Audit() repository.AuditRepository                  { return auditRepo{r} }
func (r *repos) Outbox() repository.OutboxRepository                { return outboxRepo{r} }

func notFound(op, id string) error {
	return fmt.Errorf("%s %s: %w", op, id, repository.ErrNotFound)
}

type variantRepo struct{ *repos }

func (r variantRepo) GetByID(_ context.Context, id string) (out models.ProductVariant, err error) {
	err = r.run(func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return notFound("get variant", id)
		}
		out = v
		return nil
	})
	return out, err
}

func (r variantRepo) DecrementStock(_ context.Context, id string, qty int) error {
	return r.run(func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return notFound("decrement stock", id)
		}
		if v.Stock < qty {
			return fmt.Errorf("decrement stock %s: %w", id, repository.ErrInsufficientStock)
		}
		v.Stock -= qty
		st.variants[id] = v
		return nil
	})
}

func (r variantRepo) IncrementStock(_ context.Context, id string, qty int) error {
	return r.run(func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return notFound("increment stock", id)
		}
		v.Stock += qty
		st.variants[id] = v
		return nil
	})
}

type voucherRepo struct{ *repos }

func (r voucherRepo) GetByID(_ context.Context, id string) (out models.Voucher, err error) {
	err = r.run(func(st *state) error {
		v, ok := st.vouchers[id]
		if !ok {
			return notFound("get voucher", id)
		}
		out = v
		return nil
	})
	return out, err
}

func (r voucherRepo) GetByCode(_ context.Context, code string) (out models.Voucher, err error) {
	err = r.run(func(st *state) error {
		for _, v := range st.vouchers {
			if v.Code == code {
				out = v
				return nil
			}
		}
		return notFound("get voucher by code", code)
	})
	return out, err
}

func (r voucherRepo) Insert(_ context.Context, v models.Voucher) error {
	return r.run(func(st *state) error {
		if _, ok := st.vouchers[v.ID]; ok {
			return fmt.Errorf("insert voucher %s: %w", v.ID, repository.ErrDuplicate)
		}
		for _, existing := range st.vouchers {
			if existing.Code == v.Code {
				return fmt.Errorf("insert voucher %s: %w", v.Code, repository.ErrDuplicate)
			}
		}
		st.vouchers[v.ID] = v
		return nil
	})
}

func (r voucherRepo) Update(_ context.Context, v models.Voucher) error {
	return r.run(func(st *state) error {
		current, ok := st.vouchers[v.ID]
		if !ok {
			return notFound("update voucher", v.ID)
		}
		for id, existing := range st.vouchers {
			if id != v.ID && existing.Code == v.Code {
				return fmt.Errorf("update voucher %s: %w", v.Code, repository.ErrDuplicate)
			}
		}
		if current.CurrentUsage > v.MaxUsage {
			return fmt.Errorf("update voucher %s: %w", v.ID, repository.ErrConflict)
		}
		if v.MaxDiscount != nil {
			md := *v.MaxDiscount
			v.MaxDiscount = &md
		}
		v.CurrentUsage = current.CurrentUsage
		v.CreatedAt = current.CreatedAt
		st.vouchers[v.ID] = v
		return nil
	})
}

func (r voucherRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.vouchers[id]; !ok {
			return notFound("delete voucher", id)
		}
		delete(st.vouchers, id)
		for orderID, o := range st.orders {
			if o.VoucherID == id {
				o.VoucherID = ""
				st.orders[orderID] = o
			}
		}
		return nil
	})
}

func sortVouchers(list []models.Voucher, less func(a, b models.Voucher) bool) {
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}

func (r voucherRepo) List(_ context.Context, filter models.VoucherFilter) (out []models.Voucher, total int, err error) {
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	err = r.run(func(st *state) error {
		var matched []models.Voucher
		for _, v := range st.vouchers {
			if q == "" || strings.Contains(strings.ToLower(v.Code), q) || strings.Contains(strings.ToLower(v.Name), q) {
				matched = append(matched, v)
			}
		}
		sortVouchers(matched, func(a, b models.Voucher) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		total = len(matched)
		out = window(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, total, err
}

func (r voucherRepo) ListAvailable(_ context.Context, orderValue decimal.Decimal, now time.Time) (out []models.Voucher, err error) {
	err = r.run(func(st *state) error {
		for _, v := range st.vouchers {
			if v.IsActive && v.MinOrderValue.LessThanOrEqual(orderValue) && v.HasCapacity() && v.InWindow(now) {
				out = append(out, v)
			}
		}
		sortVouchers(out, func(a, b models.Voucher) bool {
			if !a.DiscountValue.Equal(b.DiscountValue) {
				return a.DiscountValue.GreaterThan(b.DiscountValue)
			}
			return a.Code < b.Code
		})
		return nil
	})
	return out, err
}

func (r voucherRepo) IncrementUsage(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		v, ok := st.vouchers[id]
		if !ok {
			return notFound("increment voucher usage", id)
		}
		if v.CurrentUsage >= v.MaxUsage {
			return fmt.Errorf("increment voucher usage %s: %w", id, repository.ErrVoucherExhausted)
		}
		v.CurrentUsage++
		st.vouchers[id] = v
		return nil
	})
}

func (r voucherRepo) DecrementUsage(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		v, ok := st.vouchers[id]
		if !ok {
			return notFound("decrement voucher usage", id)
		}
		if v.CurrentUsage > 0 {
			v.CurrentUsage--
			st.vouchers[id] = v
		}
		return nil
	})
}

func (r voucherRepo) CountOrders(_ context.Context, id string) (n int, err error) {
	err = r.run(func(st *state) error {
		for _, o := range st.orders {
			if o.VoucherID == id {
				n++
			}
		}
		return nil
	})
	return n, err
}

type cartRepo struct{ *repos }

func (r cartRepo) GetByUser(_ context.Context, userID string) (out models.Cart, err error) {
	err = r.run(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return notFound("get cart", userID)
		}
		out = models.Cart{ID: c.ID, UserID: c.UserID}
		for _, l := range c.Lines {
			if v, ok := st.variants[l.VariantID]; ok {
				l.Variant = &v
			}
			out.Lines = append(out.Lines, l)
		}
		return nil
	})
	return out, err
}

func (r cartRepo) RemoveLines(_ context.Context, cartID string, lines []models.CartLine) error {
	return r.run(func(st *state) error {
		for userID, c := range st.carts {
			if c.ID != cartID {
				continue
			}
			remove := make(map[string]models.CartLine, len(lines))
			for _, l := range lines {
				remove[l.ID] = l
			}
			kept := make([]models.CartLine, 0, len(c.Lines))
			matched := 0
			for _, l := range c.Lines {
				want, ok := remove[l.ID]
				if ok && want.VariantID == l.VariantID && want.Quantity == l.Quantity {
					matched++
					continue
				}
				kept = append(kept, l)
			}
			if matched != len(lines) {
				return fmt.Errorf("remove cart lines %s: %w", cartID, repository.ErrConflict)
			}
			c.Lines = kept
			st.carts[userID] = c
			return nil
		}
		if len(lines) > 0 {
			return fmt.Errorf("remove cart lines %s: %w", cartID, repository.ErrConflict)
		}
		return nil
	})
}

type addressRepo struct{ *repos }

func (r addressRepo) GetForUser(ctx context.Context, id, userID string) (models.Address, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Address{}, err
	}
	if a.UserID != userID {
		return models.Address{}, notFound("get address", id)
	}
	return a, nil
}

func (r addressRepo) GetByID(_ context.Context, id string) (out models.Address, err error) {
	err = r.run(func(st *state) error {
		a, ok := st.addresses[id]
		if !ok {
			return notFound("get address", id)
		}
		out = a
		return nil
	})
	return out, err
}

type paymentMethodRepo struct{ *repos }

func (r paymentMethodRepo) GetActive(ctx context.Context, id string) (models.PaymentMethod, error) {
	pm, err := r.GetByID(ctx, id)
	if err != nil {
		return models.PaymentMethod{}, err
	}
	if !pm.IsActive {
		return models.PaymentMethod{}, notFound("get payment method", id)
	}
	return pm, nil
}

func (r paymentMethodRepo) GetByID(_ context.Context, id string) (out models.PaymentMethod, err error) {
	err = r.run(func(st *state) error {
		pm, ok := st.payments[id]
		if !ok {
			return notFound("get payment method", id)
		}
		out = pm
		return nil
	})
	return out, err
}

type userRepo struct{ *repos }

func (r userRepo) GetSummary(_ context.Context, id string) (out models.UserSummary, err error) {
	err = r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return notFound("get user", id)
		}
		out = u
		return nil
	})
	return out, err
}

type orderRepo struct{ *repos }

func (r orderRepo) Insert(_ context.Context, o models.Order) error {
	return r.run(func(st *state) error {
		for _, existing := range st.orders {
			if existing.ID == o.ID || existing.OrderNumber == o.OrderNumber {
				return fmt.Errorf("insert order %s: %w", o.OrderNumber, repository.ErrDuplicate)
			}
		}
		o.Lines = nil
		o.Address, o.PaymentMethod, o.Voucher, o.User = nil, nil, nil, nil
		st.orders[o.ID] = o
		return nil
	})
}

func (r orderRepo) InsertLine(_ context.Context, l models.OrderLine) error {
	return r.run(func(st *state) error {
		o, ok := st.orders[l.OrderID]
		if !ok {
			return notFound("insert order line", l.OrderID)
		}
		o.Lines = append(o.Lines, l)
		st.orders[l.OrderID] = o
		return nil
	})
}

func (r orderRepo) GetByID(_ context.Context, id string) (out models.Order, err error) {
	err = r.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return notFound("get order", id)
		}
		o.Lines = append([]models.OrderLine(nil), o.Lines...)
		out = o
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: transactions are already serialised.
func (r orderRepo) GetForUpdate(ctx context.Context, id string) (models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r orderRepo) UpdateStatus(_ context.Context, u models.StatusUpdate) error {
	return r.run(func(st *state) error {
		o, ok := st.orders[u.OrderID]
		if !ok {
			return notFound("update order status", u.OrderID)
		}
		if o.Status != u.From {
			return fmt.Errorf("update order status %s: %w", u.OrderID, repository.ErrStatusConflict)
		}
		at := u.At
		o.Status = u.To
		o.UpdatedAt = at
		switch u.To {
		case models.OrderConfirmed:
			o.ConfirmedAt = &at
		case models.OrderShipping:
			o.ShippedAt = &at
		case models.OrderDelivered:
			o.DeliveredAt = &at
		case models.OrderCancelled:
			o.CancelledAt = &at
		}
		if u.AdminNote != nil {
			o.AdminNote = *u.AdminNote
		}
		if u.CancelReason != nil {
			o.CancelReason = *u.CancelReason
		}
		st.orders[u.OrderID] = o
		return nil
	})
}

func matchOrder(o models.Order, f models.OrderFilter) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" && !strings.Contains(strings.ToLower(o.OrderNumber), q) {
		return false
	}
	return true
}

func (r orderRepo) List(_ context.Context, filter models.OrderFilter) (out []models.Order, err error) {
	err = r.run(func(st *state) error {
		var matched []models.Order
		for _, o := range st.orders {
			if matchOrder(o, filter) {
				o.Lines = append([]models.OrderLine(nil), o.Lines...)
				matched = append(matched, o)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID < matched[j].ID
		})
		out = window(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func (r orderRepo) Count(_ context.Context, filter models.OrderFilter) (n int, err error) {
	err = r.run(func(st *state) error {
		for _, o := range st.orders {
			if matchOrder(o, filter) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r orderRepo) Stats(_ context.Context, userID string) (stats models.OrderStats, err error) {
	stats.TotalSpent = decimal.Zero
	err = r.run(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID != userID {
				continue
			}
			stats.Add(o.Status, 1)
			if o.Status == models.OrderDelivered {
				stats.TotalSpent = stats.TotalSpent.Add(o.Total)
			}
		}
		return nil
	})
	return stats, err
}

type auditRepo struct{ *repos }

func (r auditRepo) Append(_ context.Context, e models.AuditEntry) error {
	return r.run(func(st *state) error {
		st.audit = append(st.audit, e)
		return nil
	})
}

func (r auditRepo) ListByOrder(_ context.Context, orderID string) (out []models.AuditEntry, err error) {
	err = r.run(func(st *state) error {
		for _, e := range st.audit {
			if e.OrderID == orderID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

type outboxRepo struct{ *repos }

func (r outboxRepo) Insert(_ context.Context, rec models.OutboxRecord) error {
	return r.run(func(st *state) error {
		st.outboxSeq++
		rec.ID = st.outboxSeq
		st.outbox = append(st.outbox, rec)
		return nil
	})
}

func (r outboxRepo) FetchPending(_ context.Context, limit int) (out []models.OutboxRecord, err error) {
	err = r.run(func(st *state) error {
		for _, rec := range st.outbox {
			if rec.SentAt != nil {
				continue
			}
			if limit > 0 && len(out) == limit {
				break
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (r outboxRepo) MarkSent(_ context.Context, ids []int64, at time.Time) error {
	return r.run(func(st *state) error {
		want := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			want[id] = struct{}{}
		}
		for i := range st.outbox {
			if _, ok := want[st.outbox[i].ID]; ok {
				sent := at
				st.outbox[i].SentAt = &sent
			}
		}
		return nil
	})
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

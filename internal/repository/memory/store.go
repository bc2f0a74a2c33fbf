// Package memory is an in-process Store with the same contracts as the
// Postgres store. Transactions are serialised and applied copy-on-commit, so
// a failed or cancelled transaction leaves no trace. Every transaction holds
// one store-wide lock, so this backend is for tests and local runs only.
package memory

import (
	"context"
	"sync"

	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

type state struct {
	users     map[string]models.UserSummary
	addresses map[string]models.Address
	payments  map[string]models.PaymentMethod
	variants  map[string]models.ProductVariant
	vouchers  map[string]models.Voucher
	carts     map[string]models.Cart // keyed by user id
	orders    map[string]models.Order
	audit     []models.AuditEntry
	outbox    []models.OutboxRecord
	outboxSeq int64
}

func newState() *state {
	return &state{
		users:     map[string]models.UserSummary{},
		addresses: map[string]models.Address{},
		payments:  map[string]models.PaymentMethod{},
		variants:  map[string]models.ProductVariant{},
		vouchers:  map[string]models.Voucher{},
		carts:     map[string]models.Cart{},
		orders:    map[string]models.Order{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:     make(map[string]models.UserSummary, len(s.users)),
		addresses: make(map[string]models.Address, len(s.addresses)),
		payments:  make(map[string]models.PaymentMethod, len(s.payments)),
		variants:  make(map[string]models.ProductVariant, len(s.variants)),
		vouchers:  make(map[string]models.Voucher, len(s.vouchers)),
		carts:     make(map[string]models.Cart, len(s.carts)),
		orders:    make(map[string]models.Order, len(s.orders)),
		audit:     append([]models.AuditEntry(nil), s.audit...),
		outbox:    make([]models.OutboxRecord, len(s.outbox)),
		outboxSeq: s.outboxSeq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.vouchers {
		if v.MaxDiscount != nil {
			md := *v.MaxDiscount
			v.MaxDiscount = &md
		}
		c.vouchers[k] = v
	}
	for k, v := range s.carts {
		v.Lines = append([]models.CartLine(nil), v.Lines...)
		c.carts[k] = v
	}
	for k, v := range s.orders {
		v.Lines = append([]models.OrderLine(nil), v.Lines...)
		c.orders[k] = v
	}
	for i, rec := range s.outbox {
		rec.Payload = append([]byte(nil), rec.Payload...)
		c.outbox[i] = rec
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Repos returns repositories where each call commits on its own.
func (s *Store) Repos() repository.Repositories {
	return &repos{run: func(fn func(*state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.st)
	}}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	r := &repos{run: func(fn func(*state) error) error { return fn(work) }}
	if err := fn(ctx, r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Seeding helpers for local runs and tests.

func (s *Store) PutUser(u models.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) PutAddress(a models.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.addresses[a.ID] = a
}

func (s *Store) PutPaymentMethod(pm models.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.payments[pm.ID] = pm
}

func (s *Store) PutVariant(v models.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.variants[v.ID] = v
}

func (s *Store) PutVoucher(v models.Voucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.vouchers[v.ID] = v
}

// PutCart replaces the user's cart. Variant pointers on lines are ignored;
// live variant data is joined on read.
func (s *Store) PutCart(c models.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]models.CartLine, len(c.Lines))
	for i, l := range c.Lines {
		l.Variant = nil
		lines[i] = l
	}
	c.Lines = lines
	s.st.carts[c.UserID] = c
}

func (s *Store) Variant(id string) (models.ProductVariant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.variants[id]
	return v, ok
}

func (s *Store) Voucher(id string) (models.Voucher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.vouchers[id]
	return v, ok
}

func (s *Store) CartLines(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.carts[userID].Lines)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) OutboxLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.outbox)
}

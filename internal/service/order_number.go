package service

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	DefaultOrderNumberPrefix = "ORD"
	orderNumberAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderNumberSuffixLen     = 3
)

// OrderNumberGenerator builds human-readable order numbers of the form
// prefix + last six digits of the unix millisecond clock + three random
// uppercase alphanumerics. Uniqueness is enforced by the store.
type OrderNumberGenerator struct {
	prefix string
	clock  func() time.Time
	intn   func(int) int
}

func NewOrderNumberGenerator(prefix string, clock func() time.Time) *OrderNumberGenerator {
	if prefix == "" {
		prefix = DefaultOrderNumberPrefix
	}
	if clock == nil {
		clock = time.Now
	}
	return &OrderNumberGenerator{prefix: prefix, clock: clock, intn: rand.IntN}
}

func (g *OrderNumberGenerator) Next() string {
	var b strings.Builder
	b.WriteString(g.prefix)
	fmt.Fprintf(&b, "%06d", g.clock().UnixMilli()%1_000_000)
	for range orderNumberSuffixLen {
		b.WriteByte(orderNumberAlphabet[g.intn(len(orderNumberAlphabet))])
	}
	return b.String()
}

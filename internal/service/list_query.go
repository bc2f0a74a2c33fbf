package service

import (
	"strings"

	"github.com/lephuong249/storefront-orders/internal/models"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

type ListQuery struct {
	Status string
	Search string
	Limit  int
	Offset int
}

func (q ListQuery) normalize() ListQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	return q
}

func (q ListQuery) filter(userID string) (models.OrderFilter, error) {
	f := models.OrderFilter{UserID: userID, Query: q.Search, Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		st := models.OrderStatus(q.Status)
		if !st.Valid() {
			return models.OrderFilter{}, invalidStatus(q.Status)
		}
		f.Status = st
	}
	return f, nil
}

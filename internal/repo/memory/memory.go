package memory

import (
	"context"
	"sync"
	"time"

	"github.com/TajoLin/website-speed-test/internal/domain"
	"github.com/TajoLin/website-speed-test/internal/repo"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	rows   []*domain.Measurement
}

func New() *Store {
	return &Store{rows: make([]*domain.Measurement, 0, 128)}
}

func (m *Store) Append(ctx context.Context, r *domain.Measurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.rows = append(m.rows, r)
	return nil
}

func (m *Store) Latest(ctx context.Context, limit int) ([]domain.Measurement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.rows) {
		limit = len(m.rows)
	}
	out := make([]domain.Measurement, 0, limit)
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.rows[i])
	}
	return out, nil
}

var _ repo.MeasurementStore = (*Store)(nil)

package repo

import (
	"context"

	"github.com/TajoLin/website-speed-test/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later.
type MeasurementStore interface {
	Append(ctx context.Context, m *domain.Measurement) error
	Latest(ctx context.Context, limit int) ([]domain.Measurement, error)
}

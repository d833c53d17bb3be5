package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TajoLin/website-speed-test/internal/domain"
	"github.com/TajoLin/website-speed-test/internal/repo"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Append(ctx context.Context, m *domain.Measurement) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO measurements (url, ttfb_ms, total_ms, bytes, error, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id`,
		m.URL, m.TTFBMS, m.TotalMS, m.Bytes, m.Error, m.CreatedAt)
	return row.Scan(&m.ID)
}

func (s *Store) Latest(ctx context.Context, limit int) ([]domain.Measurement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, ttfb_ms, total_ms, bytes, error, created_at
		   FROM measurements
		  ORDER BY created_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Measurement
	for rows.Next() {
		var m domain.Measurement
		if err := rows.Scan(&m.ID, &m.URL, &m.TTFBMS, &m.TotalMS, &m.Bytes, &m.Error, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ repo.MeasurementStore = (*Store)(nil)

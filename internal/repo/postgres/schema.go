package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS measurements (
  id         BIGSERIAL PRIMARY KEY,
  url        TEXT NOT NULL,
  ttfb_ms    DOUBLE PRECISION NULL,
  total_ms   DOUBLE PRECISION NULL,
  bytes      BIGINT NULL,
  error      TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_measurements_created_at ON measurements (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_measurements_url_time   ON measurements (url, created_at DESC);
`

// EnsureSchema applies the minimal schema so the service can run
// against a fresh DB/volume.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

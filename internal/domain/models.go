package domain

import "time"

// Measurement is one recorded probe outcome. Pointer fields are nil
// when the probe failed before producing the metric (and TTFBMS stays
// nil for an empty body even on success).
type Measurement struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	TTFBMS    *float64  `json:"ttfb_ms"`
	TotalMS   *float64  `json:"total_ms"`
	Bytes     *int64    `json:"bytes"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/TajoLin/website-speed-test/internal/domain"
	"github.com/TajoLin/website-speed-test/internal/geoip"
	"github.com/TajoLin/website-speed-test/internal/metrics"
	"github.com/TajoLin/website-speed-test/internal/probe"
	"github.com/TajoLin/website-speed-test/internal/repo"
)

// maxBatchSize caps how many URLs one batch submission may carry.
const maxBatchSize = 10

// Prober runs one timing probe. Satisfied by *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, target string) (*probe.Result, error)
}

// BatchRunner probes several URLs concurrently. Satisfied by
// *probe.Runner.
type BatchRunner interface {
	Run(ctx context.Context, urls []string) []probe.Outcome
}

// Locator resolves geolocation/risk metadata for an IP. Satisfied by
// *geoip.Client.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*geoip.Info, error)
}

type Server struct {
	Logger         *zap.Logger
	Prober         Prober
	Runner         BatchRunner
	GeoIP          Locator
	Store          repo.MeasurementStore
	Metrics        *metrics.Collector
	AllowedOrigins []string
}

func NewServer(l *zap.Logger, p Prober, r BatchRunner, g Locator, st repo.MeasurementStore, m *metrics.Collector) *Server {
	return &Server{Logger: l, Prober: p, Runner: r, GeoIP: g, Store: st, Metrics: m}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if len(s.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}))
	} else {
		r.Use(cors.AllowAll().Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.Metrics.Handler())

	r.Get("/api/probe", s.handleProbeGet)
	r.Post("/api/probe", s.handleProbePost)
	r.Post("/api/probe/batch", s.handleProbeBatch)
	r.Get("/api/geoip", s.handleGeoIP)
	r.Get("/api/results/latest", s.handleLatestResults)

	return r
}

type probePayload struct {
	URL string `json:"url"`
}

type batchPayload struct {
	URLs []string `json:"urls"`
}

// probeFailure is the failure half of the probe contract: the outcome
// is payload, not an HTTP error, so the rendering side has one decode
// path.
type probeFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (s *Server) handleProbePost(w http.ResponseWriter, r *http.Request) {
	var p probePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || strings.TrimSpace(p.URL) == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	s.probeAndRespond(w, r, p.URL)
}

func (s *Server) handleProbeGet(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}
	s.probeAndRespond(w, r, target)
}

func (s *Server) probeAndRespond(w http.ResponseWriter, r *http.Request, target string) {
	res, err := s.Prober.Probe(r.Context(), target)
	out := probe.Outcome{URL: target, Result: res}
	if err != nil {
		out.Err = probe.AsError(err)
	}
	s.record(r.Context(), out)
	writeJSON(w, outcomeBody(out))
}

func (s *Server) handleProbeBatch(w http.ResponseWriter, r *http.Request) {
	var p batchPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || len(p.URLs) == 0 {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if len(p.URLs) > maxBatchSize {
		http.Error(w, "too many urls", http.StatusBadRequest)
		return
	}

	outcomes := s.Runner.Run(r.Context(), p.URLs)
	body := make([]any, 0, len(outcomes))
	for _, out := range outcomes {
		s.record(r.Context(), out)
		body = append(body, outcomeBody(out))
	}
	writeJSON(w, body)
}

func (s *Server) handleGeoIP(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		ip = clientIP(r)
	}

	s.Metrics.GeoIPRequests.Inc()
	info, err := s.GeoIP.Lookup(r.Context(), ip)
	if err != nil {
		s.Metrics.GeoIPErrors.Inc()
		s.Logger.Warn("geoip_lookup_error", zap.String("ip", ip), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"ip": ip, "error": err.Error()})
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := s.Store.Latest(r.Context(), limit)
	if err != nil {
		s.Logger.Warn("latest_results_error", zap.Error(err))
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []domain.Measurement{}
	}
	writeJSON(w, rows)
}

// record persists the outcome and feeds the counters.
func (s *Server) record(ctx context.Context, out probe.Outcome) {
	s.Metrics.ProbeRequests.Inc()

	m := &domain.Measurement{URL: out.URL, CreatedAt: time.Now().UTC()}
	if out.Err != nil {
		s.Metrics.ProbeErrors.WithLabelValues(string(out.Err.Kind)).Inc()
		m.Error = out.Err.Message
		s.Logger.Info("probe_failed",
			zap.String("url", out.URL),
			zap.String("kind", string(out.Err.Kind)),
			zap.String("message", out.Err.Message),
		)
	} else {
		res := out.Result
		s.Metrics.ProbeDurations.Observe(res.TotalMS / 1000)
		s.Metrics.ProbeBytes.Add(float64(res.Bytes))
		m.URL = res.URL
		m.TTFBMS = res.TTFBMS
		total := res.TotalMS
		m.TotalMS = &total
		bytes := res.Bytes
		m.Bytes = &bytes
		s.Logger.Info("probe_done",
			zap.String("url", res.URL),
			zap.Float64("total_ms", res.TotalMS),
			zap.Int64("bytes", res.Bytes),
		)
	}

	if err := s.Store.Append(ctx, m); err != nil {
		s.Logger.Warn("measurement_append_error", zap.String("url", m.URL), zap.Error(err))
	}
}

// outcomeBody maps an outcome onto the wire contract: the Result as-is
// on success, {url, error} on failure.
func outcomeBody(out probe.Outcome) any {
	if out.Err != nil {
		return probeFailure{URL: out.URL, Error: out.Err.Message}
	}
	return out.Result
}

// clientIP prefers the first X-Forwarded-For entry, falling back to
// the peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

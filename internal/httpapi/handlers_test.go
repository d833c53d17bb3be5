package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/TajoLin/website-speed-test/internal/geoip"
	"github.com/TajoLin/website-speed-test/internal/metrics"
	"github.com/TajoLin/website-speed-test/internal/probe"
	"github.com/TajoLin/website-speed-test/internal/repo/memory"
)

// ---- test helpers ----

type fakeProber struct {
	res *probe.Result
	err error
}

func (f *fakeProber) Probe(_ context.Context, target string) (*probe.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.res
	if r.URL == "" {
		r.URL = target
	}
	return &r, nil
}

type fakeRunner struct {
	prober *fakeProber
}

func (f *fakeRunner) Run(ctx context.Context, urls []string) []probe.Outcome {
	out := make([]probe.Outcome, 0, len(urls))
	for _, u := range urls {
		res, err := f.prober.Probe(ctx, u)
		o := probe.Outcome{URL: u, Result: res}
		if err != nil {
			o.Err = probe.AsError(err)
		}
		out = append(out, o)
	}
	return out
}

type fakeLocator struct {
	lastIP string
	info   *geoip.Info
}

func (f *fakeLocator) Lookup(_ context.Context, ip string) (*geoip.Info, error) {
	f.lastIP = ip
	return f.info, nil
}

func setupServer(t *testing.T, p *fakeProber) (*Server, *memory.Store, *fakeLocator) {
	t.Helper()
	store := memory.New()
	loc := &fakeLocator{info: &geoip.Info{IP: "1.2.3.4", Country: "Germany"}}
	srv := NewServer(zap.NewNop(), p, &fakeRunner{prober: p}, loc, store, metrics.New())
	return srv, store, loc
}

func successProber() *fakeProber {
	ttfb := 40.0
	return &fakeProber{res: &probe.Result{TTFBMS: &ttfb, TotalMS: 80.0, Bytes: 1500}}
}

// ---- tests ----

func TestProbePost_Success(t *testing.T) {
	srv, store, _ := setupServer(t, successProber())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := []byte(`{"url":"example.com"}`)
	resp, err := http.Post(ts.URL+"/api/probe", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}

	var out struct {
		URL   string   `json:"url"`
		TTFB  *float64 `json:"ttfb"`
		Total float64  `json:"total"`
		Bytes int64    `json:"bytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.URL != "example.com" {
		t.Fatalf("want requested url echoed, got %q", out.URL)
	}
	if out.TTFB == nil || *out.TTFB != 40.0 || out.Total != 80.0 || out.Bytes != 1500 {
		t.Fatalf("unexpected body: %+v", out)
	}

	rows, err := store.Latest(context.Background(), 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("want measurement recorded, got rows=%d err=%v", len(rows), err)
	}
	if rows[0].Error != "" || rows[0].Bytes == nil || *rows[0].Bytes != 1500 {
		t.Fatalf("unexpected measurement: %+v", rows[0])
	}
}

func TestProbePost_FailureIsPayloadNotHTTPError(t *testing.T) {
	p := &fakeProber{err: &probe.Error{Kind: probe.KindTimedOut, Message: "no response within 15s"}}
	srv, store, _ := setupServer(t, p)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/probe", "application/json",
		bytes.NewReader([]byte(`{"url":"https://slow.test"}`)))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("probe failures ride in the payload; want 200, got %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["url"] != "https://slow.test" || out["error"] != "no response within 15s" {
		t.Fatalf("unexpected failure body: %+v", out)
	}
	if _, ok := out["ttfb"]; ok {
		t.Fatalf("failure body must not carry timing fields: %+v", out)
	}

	rows, _ := store.Latest(context.Background(), 10)
	if len(rows) != 1 || rows[0].Error == "" {
		t.Fatalf("want failed measurement recorded: %+v", rows)
	}
}

func TestProbeGet_QueryParam(t *testing.T) {
	srv, _, _ := setupServer(t, successProber())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/probe?url=example.com")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestProbe_BadPayloads(t *testing.T) {
	srv, _, _ := setupServer(t, successProber())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	cases := []struct {
		path, body string
	}{
		{"/api/probe", `{}`},
		{"/api/probe", `not json`},
		{"/api/probe/batch", `{"urls":[]}`},
		{"/api/probe/batch", `{"urls":["a","b","c","d","e","f","g","h","i","j","k"]}`},
	}
	for _, c := range cases {
		resp, err := http.Post(ts.URL+c.path, "application/json", bytes.NewReader([]byte(c.body)))
		if err != nil {
			t.Fatalf("POST %s error: %v", c.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("POST %s %q: want 400, got %d", c.path, c.body, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/api/probe")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("GET without url: want 400, got %d", resp.StatusCode)
	}
}

func TestProbeBatch_PreservesOrder(t *testing.T) {
	srv, store, _ := setupServer(t, successProber())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := []byte(`{"urls":["https://a.test","https://b.test"]}`)
	resp, err := http.Post(ts.URL+"/api/probe/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0]["url"] != "https://a.test" || out[1]["url"] != "https://b.test" {
		t.Fatalf("unexpected batch body: %+v", out)
	}

	rows, _ := store.Latest(context.Background(), 10)
	if len(rows) != 2 {
		t.Fatalf("want both measurements recorded, got %d", len(rows))
	}
}

func TestGeoIP_ExplicitAndClientAddress(t *testing.T) {
	srv, _, loc := setupServer(t, successProber())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// explicit ip wins
	resp, err := http.Get(ts.URL + "/api/geoip?ip=9.9.9.9")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if loc.lastIP != "9.9.9.9" {
		t.Fatalf("want explicit ip passed through, got %q", loc.lastIP)
	}

	// no ip: first X-Forwarded-For entry
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/geoip", nil)
	req.Header.Set("X-Forwarded-For", "5.6.7.8, 10.0.0.1")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp2.Body.Close()
	if loc.lastIP != "5.6.7.8" {
		t.Fatalf("want forwarded ip, got %q", loc.lastIP)
	}

	var info geoip.Info
	if err := json.NewDecoder(resp2.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Country != "Germany" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestLatestResults(t *testing.T) {
	srv, _, _ := setupServer(t, successProber())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// empty store still returns a JSON array
	resp, err := http.Get(ts.URL + "/api/results/latest")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rows == nil {
		t.Fatalf("want empty array, got null")
	}
}

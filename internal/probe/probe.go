package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultDeadline bounds a whole invocation, redirect hops
	// included. The budget is cumulative across the chain, not
	// re-armed per hop.
	DefaultDeadline = 15 * time.Second

	// maxRedirects is the hop budget per invocation; the 4th redirect
	// response fails instead of being followed.
	maxRedirects = 3

	readBufSize = 32 * 1024
)

// browserHeaders is the fixed header set sent with every probe. Many
// origins reject or alter behavior for bare non-browser requests, and
// results are only comparable across targets if the headers never
// vary.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate",
	"Connection":      "keep-alive",
}

// Prober measures time-to-first-byte, total transfer time and bytes
// transferred for a single GET against an arbitrary URL.
//
// TLS certificate validation is deliberately disabled: the probe must
// be usable against self-signed and otherwise misconfigured endpoints.
// Do not point it at anything trust-sensitive.
type Prober struct {
	// Deadline overrides DefaultDeadline when positive. The inbound
	// API exposes no per-request override; this is construction-time
	// tuning only.
	Deadline time.Duration
}

func NewProber() *Prober {
	return &Prober{Deadline: DefaultDeadline}
}

// Probe issues a GET against target and returns exactly one of a
// Result or an *Error. A target without a scheme defaults to https.
// The Result always names the originally requested URL, never the
// final redirect target.
func (p *Prober) Probe(ctx context.Context, target string) (*Result, error) {
	requested, u, err := normalizeTarget(target)
	if err != nil {
		return nil, err
	}

	deadline := p.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := newCompletion()

	// The timer races the transfer goroutine for the single delivery
	// slot. When it wins, the cancel tears down whatever connection is
	// still in flight; the transfer's own late outcome is discarded.
	timer := time.AfterFunc(deadline, func() {
		if c.settle(nil, &Error{
			Kind:    KindTimedOut,
			Message: fmt.Sprintf("no response from %s within %s", requested, deadline),
		}) {
			cancel()
		}
	})
	defer timer.Stop()

	go p.transfer(ctx, requested, u, c)

	return c.wait()
}

// transfer runs the hop loop and settles the completion with the first
// terminal event it reaches.
func (p *Prober) transfer(ctx context.Context, requested string, u *url.URL, c *completion) {
	current := u
	redirects := 0

	for {
		// The clock starts just before the connection attempt of the
		// hop; the reported timings describe the terminal hop, not
		// the sum of the chain.
		start := time.Now()

		resp, closeConn, err := p.fetch(ctx, current)
		if err != nil {
			c.settle(nil, classifyTransport(err))
			return
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			loc, lerr := resp.Location()
			if lerr == nil {
				resp.Body.Close()
				closeConn()
				if redirects == maxRedirects {
					c.settle(nil, &Error{
						Kind:    KindTooManyRedirects,
						Message: fmt.Sprintf("stopped after %d redirects", maxRedirects),
					})
					return
				}
				redirects++
				current = loc
				continue
			}
			// Redirect status without a Location header is terminal;
			// stream whatever body came with it.
		}

		var ttfb *float64
		var bytes int64
		buf := make([]byte, readBufSize)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				if ttfb == nil {
					ms := msSince(start)
					ttfb = &ms
				}
				bytes += int64(n)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				resp.Body.Close()
				closeConn()
				c.settle(nil, classifyTransport(rerr))
				return
			}
		}
		total := msSince(start)
		resp.Body.Close()
		closeConn()

		c.settle(&Result{URL: requested, TTFBMS: ttfb, TotalMS: total, Bytes: bytes}, nil)
		return
	}
}

// fetch opens one connection for one hop. Redirects are never followed
// by the client itself; the hop loop owns that decision. The returned
// closer releases the hop's connection.
func (p *Prober) fetch(ctx context.Context, u *url.URL) (*http.Response, func(), error) {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, nil, err
	}
	return resp, transport.CloseIdleConnections, nil
}

// normalizeTarget defaults the scheme to https and requires a host.
// It returns the normalized URL string as requested by the caller and
// its parsed form, or a malformed-target error before any network
// activity.
func normalizeTarget(raw string) (string, *url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil, &Error{Kind: KindMalformedTarget, Message: "empty target URL"}
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", nil, &Error{Kind: KindMalformedTarget, Message: fmt.Sprintf("parse %q: %v", raw, err)}
	}
	if u.Hostname() == "" {
		return "", nil, &Error{Kind: KindMalformedTarget, Message: fmt.Sprintf("no host in target %q", raw)}
	}
	return s, u, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

package probe

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Outcome pairs a requested URL with whichever terminal value its
// probe produced.
type Outcome struct {
	URL    string
	Result *Result
	Err    *Error
}

// Runner probes several URLs submitted together. Probes are fully
// independent: no shared state, no ordering between their completions.
// Output order follows input order regardless.
type Runner struct {
	Logger      *zap.Logger
	Prober      *Prober
	Concurrency int
}

func NewRunner(logger *zap.Logger, prober *Prober, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{Logger: logger, Prober: prober, Concurrency: concurrency}
}

func (r *Runner) Run(ctx context.Context, urls []string) []Outcome {
	out := make([]Outcome, len(urls))

	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup

	for i, target := range urls {
		i, target := i, target
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()

			res, err := r.Prober.Probe(ctx, target)
			if err != nil {
				pe := AsError(err)
				out[i] = Outcome{URL: target, Err: pe}
				r.Logger.Debug("probe_failed",
					zap.String("url", target),
					zap.String("kind", string(pe.Kind)),
					zap.String("message", pe.Message),
				)
				return
			}
			out[i] = Outcome{URL: res.URL, Result: res}
			r.Logger.Debug("probe_done",
				zap.String("url", res.URL),
				zap.Float64("total_ms", res.TotalMS),
				zap.Int64("bytes", res.Bytes),
			)
		}()
	}

	wg.Wait()
	return out
}

package probe

import "sync/atomic"

type outcome struct {
	res *Result
	err error
}

// completion delivers exactly one terminal outcome per probe
// invocation. The deadline timer and the transfer goroutine both try
// to settle it; whichever wins is authoritative and every later
// attempt is silently discarded.
type completion struct {
	settled atomic.Bool
	ch      chan outcome
}

func newCompletion() *completion {
	return &completion{ch: make(chan outcome, 1)}
}

// settle records the outcome if none has been recorded yet. It reports
// whether this call won.
func (c *completion) settle(res *Result, err error) bool {
	if !c.settled.CompareAndSwap(false, true) {
		return false
	}
	c.ch <- outcome{res: res, err: err}
	return true
}

// wait blocks until the invocation is settled.
func (c *completion) wait() (*Result, error) {
	o := <-c.ch
	return o.res, o.err
}

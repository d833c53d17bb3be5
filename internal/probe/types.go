package probe

// Kind discriminates failed probes into a small stable taxonomy.
type Kind string

const (
	KindTooManyRedirects Kind = "too-many-redirects"
	KindConnectionReset  Kind = "connection-reset"
	KindTimedOut         Kind = "timed-out"
	KindTransport        Kind = "other-transport-error"
	KindMalformedTarget  Kind = "malformed-target"
)

// Result is the terminal value of one successful probe. TTFBMS is nil
// only when the body was empty and no data chunk ever arrived.
type Result struct {
	URL     string   `json:"url"`
	TTFBMS  *float64 `json:"ttfb"`
	TotalMS float64  `json:"total"`
	Bytes   int64    `json:"bytes"`
}

// Error is the terminal value of one failed probe. Exactly one of
// Result/Error is produced per invocation.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// AsError returns the typed probe error inside err, or wraps err as a
// generic transport error so callers always see a Kind.
func AsError(err error) *Error {
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return &Error{Kind: KindTransport, Message: err.Error()}
}

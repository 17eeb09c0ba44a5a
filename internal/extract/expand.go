package extract

import (
	"context"
	"net/http"
	"time"
)

const defaultMaxHops = 5

// Expander resolves shortened links to their final destination by
// following redirects with a bounded hop count.
type Expander struct {
	client  *http.Client
	maxHops int
}

// NewExpander builds an Expander with the given per-request timeout.
// A zero maxHops falls back to the default bound.
func NewExpander(timeout time.Duration, maxHops int) *Expander {
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}
	e := &Expander{maxHops: maxHops}
	e.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= e.maxHops {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return e
}

// Expand follows redirects from a shortened URL and returns the final
// destination. Expansion is best-effort: any failure returns the
// original URL unchanged rather than discarding the candidate.
func (e *Expander) Expand(ctx context.Context, raw string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return raw
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return raw
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return raw
}

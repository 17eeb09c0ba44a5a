package dispatch

import (
	"sync"

	"github.com/shopscout/shopscout/internal/metrics"
)

// Ledger is a bounded memory of admitted message identifiers. It
// answers "have I seen this message before" for webhook redeliveries.
// Insertion order defines eviction order once the bound is exceeded.
// Safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	max   int
	order []string
	seen  map[string]struct{}
}

// NewLedger creates a Ledger tracking at most max identifiers.
func NewLedger(max int) *Ledger {
	if max <= 0 {
		max = 1000
	}
	return &Ledger{
		max:  max,
		seen: make(map[string]struct{}, max),
	}
}

// Admit records the identifier and reports whether it was new. A
// false return means the identifier was already tracked (a duplicate
// delivery). When the bound is exceeded the oldest identifier is
// evicted first.
func (l *Ledger) Admit(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return false
	}

	l.order = append(l.order, id)
	l.seen[id] = struct{}{}

	for len(l.order) > l.max {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.seen, oldest)
	}

	metrics.SetLedgerSize(len(l.order))
	return true
}

// Len returns the current number of tracked identifiers.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

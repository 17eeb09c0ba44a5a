package dispatch

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerAdmitDetectsDuplicates(t *testing.T) {
	t.Parallel()

	l := NewLedger(10)
	require.True(t, l.Admit("m1"))
	require.False(t, l.Admit("m1"))
	require.True(t, l.Admit("m2"))
	require.Equal(t, 2, l.Len())
}

func TestLedgerEvictsOldestAtBound(t *testing.T) {
	t.Parallel()

	const max = 1000
	l := NewLedger(max)

	for i := 0; i < max+1; i++ {
		require.True(t, l.Admit(fmt.Sprintf("m%d", i)))
	}

	require.Equal(t, max, l.Len())
	// The earliest identifier was evicted and is no longer a duplicate.
	require.True(t, l.Admit("m0"))
	require.Equal(t, max, l.Len())
}

func TestLedgerConcurrentAdmit(t *testing.T) {
	t.Parallel()

	l := NewLedger(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Admit(fmt.Sprintf("m%d", n%10))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 10, l.Len())
}

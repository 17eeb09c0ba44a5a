package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if eventsTotal == nil || runsTotal == nil || stageDurationSeconds == nil ||
		stageRetriesTotal == nil || messagesSentTotal == nil || dedupLedgerSize == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestHelpersRecord(t *testing.T) {
	Init()

	EventObserved("admitted")
	if val := testutil.ToFloat64(eventsTotal.WithLabelValues("admitted")); val < 1 {
		t.Errorf("expected admitted events counter >= 1, got %f", val)
	}

	RunFinished(true)
	if val := testutil.ToFloat64(runsTotal.WithLabelValues("succeeded")); val < 1 {
		t.Errorf("expected succeeded runs counter >= 1, got %f", val)
	}

	StageRetried("search")
	if val := testutil.ToFloat64(stageRetriesTotal.WithLabelValues("search")); val < 1 {
		t.Errorf("expected search retry counter >= 1, got %f", val)
	}

	MessageSent("ack", true)
	if val := testutil.ToFloat64(messagesSentTotal.WithLabelValues("ack", "ok")); val < 1 {
		t.Errorf("expected ack ok counter >= 1, got %f", val)
	}

	SetLedgerSize(7)
	if val := testutil.ToFloat64(dedupLedgerSize); val != 7 {
		t.Errorf("expected ledger gauge 7, got %f", val)
	}
}

func TestHelpersNilSafeBeforeInit(_ *testing.T) {
	// Helpers on an uninitialized package must not panic. Init may
	// already have run in another test, so exercise them either way.
	EventObserved("duplicate")
	RunFinished(false)
	ObserveStage("acquire", "success", 0.5)
	StageRetried("extract")
	MessageSent("result", false)
	SetLedgerSize(0)
}

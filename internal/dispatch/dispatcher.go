// Package dispatch owns inbound event admission: deduplication, skip
// rules, acknowledgment, and the launch of one pipeline run per
// admitted message, with result delivery back to the sender.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/extract"
	"github.com/shopscout/shopscout/internal/metrics"
	"github.com/shopscout/shopscout/internal/pipeline"
	"github.com/shopscout/shopscout/internal/platform"
)

// Runner executes one pipeline run to completion.
type Runner interface {
	Run(ctx context.Context, state *pipeline.RunState) *pipeline.RunState
}

// Hasher produces a hex digest, used to synthesize message identifiers
// when the platform omits one.
type Hasher interface {
	Hash(data []byte) string
}

// Config holds dispatcher tunables.
type Config struct {
	// SelfID is the bot's own account identifier; events it sent are
	// skipped.
	SelfID string
	// URLsPerMessage bounds how many links go into one outbound
	// message before chunking.
	URLsPerMessage int
}

// Dispatcher admits webhook events and fans each one out to its own
// pipeline run. It never blocks the caller on pipeline work.
type Dispatcher struct {
	ledger *Ledger
	engine *extract.Engine
	runner Runner
	sender platform.Sender
	hasher Hasher
	clock  pipeline.Clock
	cfg    Config
	logger *zap.Logger

	wg sync.WaitGroup
}

// New creates a Dispatcher.
func New(
	ledger *Ledger,
	engine *extract.Engine,
	runner Runner,
	sender platform.Sender,
	hasher Hasher,
	clock pipeline.Clock,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		ledger: ledger,
		engine: engine,
		runner: runner,
		sender: sender,
		hasher: hasher,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// launchSpec captures everything a pipeline run needs, by value, at
// admission time. Runs never read dispatcher state after launch, so
// concurrent runs for different senders cannot cross-talk.
type launchSpec struct {
	runID      string
	senderID   string
	sourceURL  string
	candidates []string
}

// HandleEvent admits every messaging event in the webhook delivery.
// It returns once background runs are launched; it never waits for
// them.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *platform.Event) {
	for _, entry := range ev.Entry {
		for i := range entry.Messaging {
			d.admit(ctx, &entry.Messaging[i])
		}
	}
}

func (d *Dispatcher) admit(ctx context.Context, m *platform.MessagingEvent) {
	if m.IsReceipt() {
		metrics.EventObserved("skipped")
		return
	}
	if m.Message == nil {
		metrics.EventObserved("skipped")
		return
	}
	if m.Message.IsEcho || m.Sender.ID == d.cfg.SelfID {
		metrics.EventObserved("skipped")
		d.logger.Debug("skipping self-originated event", zap.String("sender_id", m.Sender.ID))
		return
	}

	mid := m.Message.MID
	if mid == "" {
		mid = d.synthesizeID(m)
	}

	if !d.ledger.Admit(mid) {
		metrics.EventObserved("duplicate")
		d.logger.Info("duplicate delivery ignored", zap.String("mid", mid))
		return
	}

	spec, ok := d.buildLaunch(ctx, mid, m)
	if !ok {
		// Nothing to work on. One guidance message, no run.
		metrics.EventObserved("empty")
		d.send(ctx, "guidance", m.Sender.ID, guidanceText)
		return
	}

	metrics.EventObserved("admitted")
	d.send(ctx, "ack", spec.senderID, ackText(mediaURL(m.Message.Attachments) != ""))

	d.logger.Info("launching pipeline run",
		zap.String("run_id", spec.runID),
		zap.String("sender_id", spec.senderID),
		zap.String("source_url", spec.sourceURL),
	)

	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func(spec launchSpec) {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("pipeline run panicked",
					zap.String("run_id", spec.runID),
					zap.Any("panic", r),
				)
				d.send(runCtx, "failure", spec.senderID, genericFailureText)
			}
		}()
		d.execute(runCtx, spec)
	}(spec)
}

// buildLaunch decides the pipeline entry point for a message: a media
// attachment's CDN URL when one is present, otherwise the leading
// extracted candidate link. ok is false when the event carries neither.
func (d *Dispatcher) buildLaunch(ctx context.Context, mid string, m *platform.MessagingEvent) (launchSpec, bool) {
	in := extract.Input{Text: m.Message.Text}
	for _, att := range m.Message.Attachments {
		in.Attachments = append(in.Attachments, extract.Attachment{
			Type:    att.Type,
			Payload: att.Payload,
		})
	}

	candidates := d.engine.Extract(ctx, in)
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}

	sourceURL := mediaURL(m.Message.Attachments)
	if sourceURL == "" && len(urls) > 0 {
		sourceURL = urls[0]
	}
	if sourceURL == "" {
		return launchSpec{}, false
	}

	return launchSpec{
		runID:      mid,
		senderID:   m.Sender.ID,
		sourceURL:  sourceURL,
		candidates: urls,
	}, true
}

// execute runs the pipeline and delivers the outcome to the sender
// captured at launch time.
func (d *Dispatcher) execute(ctx context.Context, spec launchSpec) {
	state := &pipeline.RunState{
		RunID:         spec.runID,
		SenderID:      spec.senderID,
		SourceURL:     spec.sourceURL,
		CandidateURLs: spec.candidates,
		StartedAt:     d.clock.Now(),
	}

	final := d.runner.Run(ctx, state)

	if final.Succeeded {
		header := resultHeader(final.Product)
		for _, msg := range chunkResults(header, final.ProductURLs, d.cfg.URLsPerMessage) {
			d.send(ctx, "result", spec.senderID, msg)
		}
		return
	}

	d.send(ctx, "failure", spec.senderID, failureText(final))
}

// Wait blocks until all launched runs finish. Used on shutdown and in
// tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, kind, recipientID, text string) {
	err := d.sender.Send(ctx, recipientID, text)
	metrics.MessageSent(kind, err == nil)
	if err != nil {
		d.logger.Error("message delivery failed",
			zap.String("kind", kind),
			zap.String("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}

// synthesizeID derives a deterministic identifier from sender and
// timestamp so deduplication still applies when the platform omits the
// message id.
func (d *Dispatcher) synthesizeID(m *platform.MessagingEvent) string {
	seed := fmt.Sprintf("%s:%d", m.Sender.ID, m.Timestamp)
	return "synth-" + d.hasher.Hash([]byte(seed))
}

// mediaURL returns the CDN URL of the first image or video attachment.
func mediaURL(attachments []platform.Attachment) string {
	for _, att := range attachments {
		t := strings.ToLower(att.Type)
		if t != "image" && t != "video" && t != "ig_reel" {
			continue
		}
		if u, ok := att.Payload["url"].(string); ok && strings.HasPrefix(u, "http") {
			return u
		}
	}
	return ""
}

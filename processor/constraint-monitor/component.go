// Package constraintmonitor provides a JetStream processor that watches
// a stream of knowledge-graph edit events, collapses same-session edits
// into bursts, evaluates the property constraints touched by each burst
// and publishes a ViolationReport for newly introduced violations.
package constraintmonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/claimwatch/checker"
	"github.com/c360studio/claimwatch/constraint"
	"github.com/c360studio/claimwatch/evaluate"
	"github.com/c360studio/claimwatch/span"
	"github.com/c360studio/claimwatch/sparql"
	"github.com/c360studio/claimwatch/wikiapi"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Component implements the constraint-monitor processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	wiki      *wikiapi.Client
	store     *constraint.Store
	evaluator *evaluate.Evaluator
	buffer    *burstBuffer

	// JetStream consumer state.
	consumer jetstream.Consumer

	// Lifecycle.
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	flushDone chan struct{}

	// Metrics.
	editsProcessed   atomic.Int64
	reportsPublished atomic.Int64
	errorsCount      atomic.Int64
	lastActivityMu   sync.RWMutex
	lastActivity     time.Time
}

// NewComponent constructs a constraint-monitor Component from raw JSON
// config and semstreams dependencies.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults for any unset fields.
	defaults := DefaultConfig()
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}
	if config.ConsumerName == "" {
		config.ConsumerName = defaults.ConsumerName
	}
	if config.APIURL == "" {
		config.APIURL = defaults.APIURL
	}
	if config.SPARQLURL == "" {
		config.SPARQLURL = defaults.SPARQLURL
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.RequestTimeout == "" {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.ConstraintTTL == "" {
		config.ConstraintTTL = defaults.ConstraintTTL
	}
	if config.SessionWindow == "" {
		config.SessionWindow = defaults.SessionWindow
	}
	if config.FlushInterval == "" {
		config.FlushInterval = defaults.FlushInterval
	}
	if config.LookupCacheSize == 0 {
		config.LookupCacheSize = defaults.LookupCacheSize
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := deps.GetLogger()

	queries := sparql.NewClient(config.SPARQLURL, config.UserAgent, config.GetRequestTimeout())
	wiki := wikiapi.NewClient(config.APIURL, config.UserAgent, config.GetRequestTimeout())
	store := constraint.NewStore(queries, config.GetConstraintTTL(), logger)
	lookup := wikiapi.NewRefLookup(wiki, queries, config.LookupCacheSize)
	registry := checker.DefaultRegistry(logger)
	evaluator := evaluate.New(store, registry, lookup, logger)

	return &Component{
		name:       "constraint-monitor",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     logger,
		wiki:       wiki,
		store:      store,
		evaluator:  evaluator,
		buffer:     newBurstBuffer(),
	}, nil
}

// Initialize prepares the component for startup.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized constraint-monitor",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"api_url", c.config.APIURL,
		"sparql_url", c.config.SPARQLURL)
	return nil
}

// Start begins consuming EditEvent messages from JetStream.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.flushDone = make(chan struct{})
	c.mu.Unlock()

	js, err := c.natsClient.JetStream()
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.Stream(subCtx, c.config.StreamName)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}

	editSubject := "claimwatch.edit.>"
	if c.config.Ports != nil && len(c.config.Ports.Inputs) > 0 {
		editSubject = c.config.Ports.Inputs[0].Subject
	}

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: editSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, consumerConfig)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	go c.consumeLoop(subCtx)
	go c.flushLoop(subCtx)

	c.logger.Info("constraint-monitor started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", editSubject)

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop fetches messages from the JetStream consumer in a tight
// loop until the context is cancelled.
func (c *Component) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(16, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(msg)
		}

		if msgs.Error() != nil && !errors.Is(msgs.Error(), context.DeadlineExceeded) {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// flushLoop periodically evaluates entity buffers that have gone quiet
// for at least the session window.
func (c *Component) flushLoop(ctx context.Context) {
	defer close(c.flushDone)

	ticker := time.NewTicker(c.config.GetFlushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Drain remaining bursts with a bounded grace period so an
			// orderly shutdown does not drop buffered edits.
			drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			for _, entries := range c.buffer.FlushAll() {
				c.evaluateEntries(drainCtx, entries)
			}
			cancel()
			return
		case <-ticker.C:
			for _, entries := range c.buffer.FlushIdle(c.config.GetSessionWindow()) {
				c.evaluateEntries(ctx, entries)
			}
		}
	}
}

// handleMessage buffers a single EditEvent message.
func (c *Component) handleMessage(msg jetstream.Msg) {
	c.editsProcessed.Add(1)
	c.updateLastActivity()
	editsConsumed.Inc()

	var baseMsg message.BaseMessage
	if err := json.Unmarshal(msg.Data(), &baseMsg); err != nil {
		c.errorsCount.Add(1)
		c.logger.Error("Failed to unmarshal base message", "error", err, "subject", msg.Subject())
		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Warn("Failed to NAK message", "error", nakErr)
		}
		return
	}

	event, ok := baseMsg.Payload().(*EditEvent)
	if !ok {
		c.logger.Warn("Payload is not an EditEvent", "type", baseMsg.Type(), "subject", msg.Subject())
		// ACK foreign payloads; they will not succeed on retry.
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("Failed to ACK message", "error", ackErr)
		}
		return
	}

	if err := event.Validate(); err != nil {
		c.logger.Error("Invalid edit event", "error", err)
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("Failed to ACK invalid message", "error", ackErr)
		}
		return
	}

	c.buffer.Add(span.ChangeEntry{
		EntityID:      event.EntityID,
		OldRevisionID: event.OldRevisionID,
		NewRevisionID: event.NewRevisionID,
		Tags:          event.Tags,
		Author:        event.Author,
		Timestamp:     event.Timestamp,
	})

	if ackErr := msg.Ack(); ackErr != nil {
		c.logger.Warn("Failed to ACK message", "error", ackErr)
	}
}

// evaluateEntries splits one entity's buffered edits into author
// sessions and evaluates each collapsed burst.
func (c *Component) evaluateEntries(ctx context.Context, entries []span.ChangeEntry) {
	for _, burst := range span.CollapseSessions(entries, c.config.GetSessionWindow()) {
		c.evaluateBurst(ctx, burst)
	}
}

func (c *Component) evaluateBurst(ctx context.Context, burst []span.ChangeEntry) {
	sp, err := span.Resolve(burst)
	if err != nil {
		c.errorsCount.Add(1)
		burstsSkipped.WithLabelValues("span").Inc()
		c.logger.Warn("Skipping unresolvable burst", "error", err)
		return
	}

	// A base revision of zero marks entity creation: there is no prior
	// state to diff against, so the new state is evaluated in full.
	if sp.BaseRevision == 0 {
		c.evaluateCreation(ctx, sp)
		return
	}

	started := time.Now()

	base, err := c.wiki.GetRevision(ctx, sp.BaseRevision)
	if err != nil {
		c.skipBurst(sp, err)
		return
	}
	next, err := c.wiki.GetRevision(ctx, sp.NewRevision)
	if err != nil {
		c.skipBurst(sp, err)
		return
	}

	results, err := c.evaluator.EvaluateChange(ctx, base, next)
	if err != nil {
		c.errorsCount.Add(1)
		burstsSkipped.WithLabelValues("evaluate").Inc()
		c.logger.Warn("Evaluation failed",
			"entity", sp.EntityID,
			"base_revision", sp.BaseRevision,
			"new_revision", sp.NewRevision,
			"error", err)
		return
	}

	burstsEvaluated.Inc()
	evaluationDuration.Observe(time.Since(started).Seconds())

	report := c.buildReport(sp, results)
	for _, r := range report.Results {
		if r.Transition != "" {
			violationsFound.WithLabelValues(r.Transition).Inc()
		}
	}

	if report.NewlyViolated == 0 && !c.config.ReportAll {
		c.logger.Debug("No new violations",
			"entity", sp.EntityID,
			"constraints_checked", len(report.Results))
		return
	}

	if err := c.publishReport(ctx, report); err != nil {
		c.errorsCount.Add(1)
		c.logger.Warn("Failed to publish report", "entity", sp.EntityID, "error", err)
		return
	}
	c.reportsPublished.Add(1)

	c.logger.Info("Burst evaluated",
		"entity", sp.EntityID,
		"base_revision", sp.BaseRevision,
		"new_revision", sp.NewRevision,
		"edits", sp.Edits,
		"constraints_checked", len(report.Results),
		"newly_violated", report.NewlyViolated)
}

// evaluateCreation evaluates a newly created entity's first state. Every
// violation on a created entity is newly introduced, so the report is
// published whenever any constraint is violated.
func (c *Component) evaluateCreation(ctx context.Context, sp span.Span) {
	started := time.Now()

	snap, err := c.wiki.GetRevision(ctx, sp.NewRevision)
	if err != nil {
		c.skipBurst(sp, err)
		return
	}

	results, err := c.evaluator.EvaluateEntity(ctx, snap)
	if err != nil {
		c.errorsCount.Add(1)
		burstsSkipped.WithLabelValues("evaluate").Inc()
		c.logger.Warn("Evaluation failed",
			"entity", sp.EntityID,
			"new_revision", sp.NewRevision,
			"error", err)
		return
	}

	burstsEvaluated.Inc()
	evaluationDuration.Observe(time.Since(started).Seconds())

	report := c.buildReport(sp, results)
	violated := 0
	for _, r := range report.Results {
		if r.Transition != "" {
			violationsFound.WithLabelValues(r.Transition).Inc()
		}
		if r.Verdict == string(checker.VerdictViolated) {
			violated++
		}
	}
	report.NewlyViolated = violated

	if violated == 0 && !c.config.ReportAll {
		c.logger.Debug("No violations on created entity",
			"entity", sp.EntityID,
			"constraints_checked", len(report.Results))
		return
	}

	if err := c.publishReport(ctx, report); err != nil {
		c.errorsCount.Add(1)
		c.logger.Warn("Failed to publish report", "entity", sp.EntityID, "error", err)
		return
	}
	c.reportsPublished.Add(1)

	c.logger.Info("Created entity evaluated",
		"entity", sp.EntityID,
		"new_revision", sp.NewRevision,
		"constraints_checked", len(report.Results),
		"violated", violated)
}

// skipBurst handles a revision read failure. A revision that no longer
// exists usually means the edit was reverted or suppressed mid-pipeline,
// so the burst is skipped rather than retried.
func (c *Component) skipBurst(sp span.Span, err error) {
	var notFound *wikiapi.RevisionNotFoundError
	if errors.As(err, &notFound) {
		burstsSkipped.WithLabelValues("revision_gone").Inc()
		c.logger.Info("Revision no longer available, skipping burst",
			"entity", sp.EntityID,
			"revision", notFound.RevisionID)
		return
	}
	c.errorsCount.Add(1)
	burstsSkipped.WithLabelValues("fetch").Inc()
	c.logger.Warn("Failed to fetch revision", "entity", sp.EntityID, "error", err)
}

func (c *Component) buildReport(sp span.Span, results []evaluate.Result) *ViolationReport {
	report := &ViolationReport{
		ReportID:     uuid.NewString(),
		EntityID:     sp.EntityID,
		BaseRevision: sp.BaseRevision,
		NewRevision:  sp.NewRevision,
		Edits:        sp.Edits,
		CheckedAt:    time.Now().UTC(),
	}
	for _, r := range results {
		out := ConstraintResult{
			ConstraintID: r.ConstraintID,
			Property:     r.Property,
			Kind:         string(r.Kind),
			Status:       string(r.Status),
			Verdict:      string(r.Verdict),
			Transition:   string(r.Transition),
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		if r.Transition == evaluate.TransitionNewlyViolated {
			report.NewlyViolated++
		}
		report.Results = append(report.Results, out)
	}
	return report
}

// publishReport publishes a ViolationReport to JetStream.
// Subject: claimwatch.report.<entity_id>
func (c *Component) publishReport(ctx context.Context, report *ViolationReport) error {
	baseMsg := message.NewBaseMessage(report.Schema(), report, "constraint-monitor")

	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	subject := fmt.Sprintf("claimwatch.report.%s", report.EntityID)
	if _, err := js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Stop gracefully stops the component, draining buffered bursts.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	cancel := c.cancel
	flushDone := c.flushDone
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if flushDone != nil {
		select {
		case <-flushDone:
		case <-time.After(timeout):
			c.logger.Warn("Timed out waiting for buffer drain")
		}
	}

	c.logger.Info("constraint-monitor stopped",
		"edits_processed", c.editsProcessed.Load(),
		"reports_published", c.reportsPublished.Load(),
		"errors", c.errorsCount.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "constraint-monitor",
		Type:        "processor",
		Description: "Evaluates property constraints over knowledge-graph edit bursts",
		Version:     "0.1.0",
	}
}

// InputPorts returns the configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, def := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        def.Name,
			Direction:   component.DirectionInput,
			Required:    def.Required,
			Description: def.Description,
			Config:      component.NATSPort{Subject: def.Subject},
		}
	}
	return ports
}

// OutputPorts returns the configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, def := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        def.Name,
			Direction:   component.DirectionOutput,
			Required:    def.Required,
			Description: def.Description,
			Config:      component.NATSPort{Subject: def.Subject},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return constraintMonitorSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorsCount.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

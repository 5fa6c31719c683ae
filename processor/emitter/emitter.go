// Package emitter provides the publishing-aware emitter: the pure
// transform that masks private records as tombstones on the output
// stream.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/message"
	"github.com/c360/embargo/natsclient"
	"github.com/c360/embargo/pkg/timestamp"
)

// Config holds configuration for the emitter processor
type Config struct {
	Ports *component.PortConfig `json:"ports"`
}

// DefaultConfig returns the default configuration for the emitter
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "records_changes",
					Type:        "nats",
					Subject:     "embargo.records.changes",
					Required:    true,
					Description: "Change events of the materialized view",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "records_out",
					Type:        "nats",
					Subject:     "embargo.records.out",
					Required:    true,
					Description: "External output stream",
				},
			},
		},
	}
}

// Processor rewrites each change event for the outside world: a record
// whose policy is suppressed at emission time (private, with no until
// deadline or one still in the future) leaves as a tombstone carrying
// only its key; everything else, including a private record whose until
// has passed, passes through unchanged. No state, no side effects.
type Processor struct {
	name       string
	subjects   []string
	outputSubj string
	natsClient *natsclient.Client
	publish    func(ctx context.Context, subject string, data []byte) error
	now        func() int64
	logger     *slog.Logger

	// Lifecycle management
	shutdown    chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	recordsProcessed int64
	errorCount       int64

	metrics *emitterMetrics
}

// NewProcessor creates an emitter processor from configuration
func NewProcessor(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "EmitterProcessor", "NewProcessor", "config unmarshal")
		}
	}

	if config.Ports == nil {
		config = DefaultConfig()
	}

	inputSubjects := config.Ports.InputSubjects()
	outputSubjects := config.Ports.OutputSubjects()

	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "EmitterProcessor", "NewProcessor",
			"no input subjects configured")
	}
	if len(outputSubjects) != 1 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "EmitterProcessor", "NewProcessor",
			"exactly one output subject required")
	}

	metrics, err := newEmitterMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize emitter metrics", "error", err)
		metrics = nil
	}

	p := &Processor{
		name:       "publishing-emitter",
		subjects:   inputSubjects,
		outputSubj: outputSubjects[0],
		natsClient: deps.NATSClient,
		now:        timestamp.Now,
		logger:     deps.GetLoggerWithComponent("publishing-emitter"),
		shutdown:   make(chan struct{}),
		metrics:    metrics,
	}
	if p.natsClient != nil {
		p.publish = p.natsClient.Publish
	}
	return p, nil
}

// Initialize prepares the processor (no-op for the emitter)
func (p *Processor) Initialize() error {
	return nil
}

// Start subscribes to the change stream
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "EmitterProcessor", "Start", "check running state")
	}
	if p.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "EmitterProcessor", "Start", "NATS client required")
	}

	for _, subject := range p.subjects {
		if err := p.natsClient.Subscribe(ctx, subject, p.handleMessage); err != nil {
			return errors.WrapTransient(err, "EmitterProcessor", "Start",
				fmt.Sprintf("subscribe to %s", subject))
		}
	}

	p.mu.Lock()
	p.running = true
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("Publishing-aware emitter started",
		"input_subjects", p.subjects,
		"output_subject", p.outputSubj)

	return nil
}

// Stop gracefully stops the processor
func (p *Processor) Stop(_ time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running {
		return nil
	}

	close(p.shutdown)

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// Mask applies the emission rule to one record at instant now (Unix
// milliseconds):
//
//	null value                  -> tombstone passthrough
//	policy suppresses at now    -> tombstone with the original key
//	otherwise                   -> unchanged
//
// Privacy is evaluated at emission time: a private record whose until
// deadline has passed is exposed. The republish loop relies on this:
// the record re-enters the pipeline unchanged, and it is this
// re-evaluation that surfaces it.
func Mask(rec *message.Record, now int64) *message.Record {
	if rec.IsTombstone() {
		return rec
	}
	if message.PolicyOf(rec.Value).Suppressed(now) {
		masked := *rec
		masked.Value = nil
		return &masked
	}
	return rec
}

// handleMessage masks one change event and emits it
func (p *Processor) handleMessage(ctx context.Context, msgData []byte) {
	atomic.AddInt64(&p.recordsProcessed, 1)

	record, err := message.ParseRecord(msgData)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("parse")
		p.logger.Debug("Dropping unparseable change event", "error", err)
		return
	}

	out := Mask(record, p.now())
	suppressed := out.IsTombstone() && !record.IsTombstone()

	data, err := out.Encode()
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("encode")
		return
	}

	if err := p.publish(ctx, p.outputSubj, data); err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("publish")
		p.logger.Error("Failed to publish output record",
			"key", record.Key,
			"output_subject", p.outputSubj,
			"error", err)
		return
	}

	p.metrics.recordEmission(suppressed, out.IsTombstone())

	p.logger.Debug("Record emitted",
		"key", record.Key,
		"suppressed", suppressed)
}

// Meta returns metadata describing this processor component.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.name,
		Type:        "processor",
		Description: "Masks private records as tombstones on the output stream",
		Version:     "0.1.0",
	}
}

// InputPorts returns the NATS input ports this processor subscribes to.
func (p *Processor) InputPorts() []component.Port {
	ports := make([]component.Port, len(p.subjects))
	for i, subj := range p.subjects {
		ports[i] = component.Port{
			Name:      fmt.Sprintf("input_%d", i),
			Direction: component.DirectionInput,
			Required:  true,
			Subject:   subj,
		}
	}
	return ports
}

// OutputPorts returns the external output port.
func (p *Processor) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "output_0",
			Direction: component.DirectionOutput,
			Required:  true,
			Subject:   p.outputSubj,
		},
	}
}

// Health returns the current health status of this processor.
func (p *Processor) Health() component.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    p.running,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&p.errorCount)),
		Uptime:     time.Since(p.startTime),
	}
}

// Register registers the emitter processor with the given registry
func Register(registry *component.Registry) error {
	return registry.Register(component.Registration{
		Name:        "publishing_emitter",
		Factory:     NewProcessor,
		Type:        "processor",
		Description: "Publishing-aware output emitter",
		Version:     "0.1.0",
	})
}

// Package normalizer provides the processor that canonicalizes incoming
// record bodies before they reach the lookup table.
package normalizer

import (
	"bytes"
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
)

// Config holds configuration for the normalizer processor
type Config struct {
	Ports *component.PortConfig `json:"ports"`
}

// DefaultConfig returns the default configuration for the normalizer
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "records_in",
					Type:        "nats",
					Subject:     "embargo.records.in",
					Required:    true,
					Description: "Raw record envelopes, including republished ones",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "records_normalized",
					Type:        "nats",
					Subject:     "embargo.records.normalized",
					Required:    true,
					Description: "Canonicalized record envelopes",
				},
			},
		},
	}
}

// Processor canonicalizes record bodies: every structured body leaves with
// a publishing object carrying a boolean private field.
type Processor struct {
	name       string
	subjects   []string
	outputSubj string
	natsClient *natsclient.Client
	publish    func(ctx context.Context, subject string, data []byte) error
	logger     *slog.Logger

	// Lifecycle management
	shutdown    chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	// Atomic counters for health reporting
	recordsProcessed int64
	errorCount       int64

	metrics *normalizerMetrics
}

// NewProcessor creates a normalizer processor from configuration
func NewProcessor(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "NormalizerProcessor", "NewProcessor", "config unmarshal")
		}
	}

	if config.Ports == nil {
		config = DefaultConfig()
	}

	inputSubjects := config.Ports.InputSubjects()
	outputSubjects := config.Ports.OutputSubjects()

	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "NormalizerProcessor", "NewProcessor",
			"no input subjects configured")
	}
	if len(outputSubjects) != 1 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "NormalizerProcessor", "NewProcessor",
			"exactly one output subject required")
	}

	metrics, err := newNormalizerMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize normalizer metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	p := &Processor{
		name:       "normalizer",
		subjects:   inputSubjects,
		outputSubj: outputSubjects[0],
		natsClient: deps.NATSClient,
		logger:     deps.GetLoggerWithComponent("normalizer"),
		shutdown:   make(chan struct{}),
		metrics:    metrics,
	}
	if p.natsClient != nil {
		p.publish = p.natsClient.Publish
	}
	return p, nil
}

// Initialize prepares the processor (no-op for the normalizer)
func (p *Processor) Initialize() error {
	return nil
}

// Start subscribes to the input subjects
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "NormalizerProcessor", "Start", "check running state")
	}
	if p.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "NormalizerProcessor", "Start", "NATS client required")
	}

	for _, subject := range p.subjects {
		if err := p.natsClient.Subscribe(ctx, subject, p.handleMessage); err != nil {
			return errors.WrapTransient(err, "NormalizerProcessor", "Start",
				fmt.Sprintf("subscribe to %s", subject))
		}
	}

	p.mu.Lock()
	p.running = true
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("Normalizer started",
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

// handleMessage normalizes one record envelope and forwards it
func (p *Processor) handleMessage(ctx context.Context, msgData []byte) {
	atomic.AddInt64(&p.recordsProcessed, 1)
	start := time.Now()

	record, err := message.ParseRecord(msgData)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("parse")
		p.logger.Debug("Dropping unparseable record", "error", err)
		return
	}

	normalized := message.Normalize(record.Value)
	changed := !bytes.Equal(record.Value, normalized)
	record.Value = normalized

	data, err := record.Encode()
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("encode")
		p.logger.Error("Failed to encode normalized record", "key", record.Key, "error", err)
		return
	}

	if err := p.publish(ctx, p.outputSubj, data); err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("publish")
		p.logger.Error("Failed to publish normalized record",
			"key", record.Key,
			"output_subject", p.outputSubj,
			"error", err)
		return
	}

	p.metrics.recordNormalized(changed, time.Since(start))

	p.logger.Debug("Record normalized",
		"key", record.Key,
		"rewritten", changed)
}

// Meta returns metadata describing this processor component.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.name,
		Type:        "processor",
		Description: "Canonicalizes record bodies with a publishing policy",
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

// OutputPorts returns the NATS output port for normalized records.
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

// Register registers the normalizer processor with the given registry
func Register(registry *component.Registry) error {
	return registry.Register(component.Registration{
		Name:        "normalizer",
		Factory:     NewProcessor,
		Type:        "processor",
		Description: "Record body canonicalizer",
		Version:     "0.1.0",
	})
}

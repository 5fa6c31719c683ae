// Package lookup provides the materialized-view processor: the latest
// normalized body per record key.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/message"
	"github.com/c360/embargo/natsclient"
)

// TableStore is the slice of KV behavior the lookup table needs. It is
// satisfied by natsclient.KVStore.
type TableStore interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
}

// Config holds configuration for the lookup table processor
type Config struct {
	Ports           *component.PortConfig `json:"ports"`
	LookupStoreName string                `json:"lookupStoreName"`
}

// DefaultConfig returns the default configuration for the lookup table
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "records_normalized",
					Type:        "nats",
					Subject:     "embargo.records.normalized",
					Required:    true,
					Description: "Canonicalized record envelopes",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "records_changes",
					Type:        "nats",
					Subject:     "embargo.records.changes",
					Required:    true,
					Description: "Change events of the materialized view",
				},
			},
		},
		LookupStoreName: "embargo-lookup",
	}
}

// Processor folds the normalized record stream into a latest-value-per-key
// materialized view and emits a change event for every update. The merge
// is the identity reducer: the newest value wins. A tombstone deletes the
// entry and flows downstream unchanged.
type Processor struct {
	name       string
	subjects   []string
	outputSubj string
	storeName  string
	natsClient *natsclient.Client
	store      TableStore
	publish    func(ctx context.Context, subject string, data []byte) error
	logger     *slog.Logger

	// Lifecycle management
	shutdown    chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	recordsProcessed int64
	errorCount       int64

	metrics *lookupMetrics
}

// NewProcessor creates a lookup table processor from configuration
func NewProcessor(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "LookupProcessor", "NewProcessor", "config unmarshal")
		}
	}

	if config.Ports == nil {
		config = DefaultConfig()
	}
	if config.LookupStoreName == "" {
		config.LookupStoreName = "embargo-lookup"
	}

	inputSubjects := config.Ports.InputSubjects()
	outputSubjects := config.Ports.OutputSubjects()

	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "LookupProcessor", "NewProcessor",
			"no input subjects configured")
	}
	if len(outputSubjects) != 1 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "LookupProcessor", "NewProcessor",
			"exactly one output subject required")
	}

	metrics, err := newLookupMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize lookup metrics", "error", err)
		metrics = nil
	}

	p := &Processor{
		name:       "lookup-table",
		subjects:   inputSubjects,
		outputSubj: outputSubjects[0],
		storeName:  config.LookupStoreName,
		natsClient: deps.NATSClient,
		logger:     deps.GetLoggerWithComponent("lookup-table"),
		shutdown:   make(chan struct{}),
		metrics:    metrics,
	}
	if p.natsClient != nil {
		p.publish = p.natsClient.Publish
	}
	return p, nil
}

// Initialize prepares the processor (store binding happens in Start)
func (p *Processor) Initialize() error {
	return nil
}

// Start binds the lookup bucket and subscribes to the normalized stream
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "LookupProcessor", "Start", "check running state")
	}

	if p.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "LookupProcessor", "Start", "NATS client required")
	}

	if p.store == nil {
		bucket, err := p.natsClient.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      p.storeName,
			Description: "Latest normalized body per record key",
		})
		if err != nil {
			return errors.WrapTransient(err, "LookupProcessor", "Start",
				fmt.Sprintf("create bucket %s", p.storeName))
		}
		p.store = p.natsClient.NewKVStore(bucket)
	}

	for _, subject := range p.subjects {
		if err := p.natsClient.Subscribe(ctx, subject, p.handleMessage); err != nil {
			return errors.WrapTransient(err, "LookupProcessor", "Start",
				fmt.Sprintf("subscribe to %s", subject))
		}
	}

	p.mu.Lock()
	p.running = true
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("Lookup table started",
		"input_subjects", p.subjects,
		"output_subject", p.outputSubj,
		"store", p.storeName)

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

// handleMessage applies one normalized record to the view and emits the
// change event. Change events for the same key keep input order because
// the subscription delivers serially.
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

	if err := p.apply(ctx, record); err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("store")
		p.logger.Error("Failed to update lookup store",
			"key", record.Key,
			"error", err)
		return
	}

	data, err := record.Encode()
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("encode")
		return
	}

	if err := p.publish(ctx, p.outputSubj, data); err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("publish")
		p.logger.Error("Failed to publish change event",
			"key", record.Key,
			"output_subject", p.outputSubj,
			"error", err)
		return
	}

	p.metrics.recordUpdate(record.IsTombstone(), time.Since(start))
}

// apply writes a record into the view: tombstones delete, values overwrite.
func (p *Processor) apply(ctx context.Context, record *message.Record) error {
	if record.IsTombstone() {
		err := p.store.Delete(ctx, record.Key)
		if err != nil && !natsclient.IsKVNotFoundError(err) {
			return err
		}
		return nil
	}

	_, err := p.store.Put(ctx, record.Key, record.Value)
	return err
}

// Meta returns metadata describing this processor component.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.name,
		Type:        "processor",
		Description: "Latest-value-per-key materialized view over the record stream",
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

// OutputPorts returns the change stream port and the backing bucket.
func (p *Processor) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "output_0",
			Direction: component.DirectionOutput,
			Required:  true,
			Subject:   p.outputSubj,
		},
		{
			Name:      "lookup_store",
			Direction: component.DirectionOutput,
			Required:  true,
			Bucket:    p.storeName,
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

// Register registers the lookup table processor with the given registry
func Register(registry *component.Registry) error {
	return registry.Register(component.Registration{
		Name:        "lookup_table",
		Factory:     NewProcessor,
		Type:        "processor",
		Description: "Latest-value-per-key materialized view",
		Version:     "0.1.0",
	})
}

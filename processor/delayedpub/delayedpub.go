// Package delayedpub provides the delayed publisher: the stateful
// processor that holds back embargoed records and republishes them into
// the input stream once their privacy deadline elapses.
package delayedpub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/message"
	"github.com/c360/embargo/natsclient"
	"github.com/c360/embargo/storage"
	"github.com/c360/embargo/storage/memstore"
	"github.com/c360/embargo/storage/pebblestore"
)

// DefaultScanInterval is the scan cadence when none is configured.
const DefaultScanInterval = 500 * time.Millisecond

// Config holds configuration for the delayed publisher
type Config struct {
	Ports           *component.PortConfig `json:"ports"`
	KeyStoreName    string                `json:"keyStoreName"`
	TimeStoreName   string                `json:"timeStoreName"`
	LookupStoreName string                `json:"lookupStoreName"`

	// DataDir roots the on-disk indexes. Empty means in-memory indexes:
	// deadlines then do not survive a restart.
	DataDir string `json:"dataDir,omitempty"`

	// ScanIntervalMs is the wall-clock scan cadence. The interval is a
	// soft upper bound on republish latency.
	ScanIntervalMs int `json:"scanIntervalMs,omitempty"`
}

// DefaultConfig returns the default configuration for the delayed publisher
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
					Name:        "records_in",
					Type:        "nats",
					Subject:     "embargo.records.in",
					Required:    true,
					Description: "Input stream loopback for republished records",
				},
			},
		},
		KeyStoreName:    "embargo-key-index",
		TimeStoreName:   "embargo-time-index",
		LookupStoreName: "embargo-lookup",
		ScanIntervalMs:  int(DefaultScanInterval / time.Millisecond),
	}
}

// Processor is the delayed publisher component. It wires the deadline
// Engine to NATS: change events arrive on the change subject, republished
// records leave on the input subject, and a ticker drives the scan.
type Processor struct {
	name         string
	subjects     []string
	loopbackSubj string
	config       Config
	scanInterval time.Duration
	natsClient   *natsclient.Client
	logger       *slog.Logger

	engine    *Engine
	keyStore  storage.Store
	timeStore storage.OrderedStore

	// Lifecycle management
	shutdown    chan struct{}
	wg          sync.WaitGroup
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	eventsProcessed int64
	errorCount      int64

	metrics *publisherMetrics
}

// NewProcessor creates a delayed publisher from configuration
func NewProcessor(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "DelayedPublisher", "NewProcessor", "config unmarshal")
		}
	}

	if config.Ports == nil {
		config.Ports = DefaultConfig().Ports
	}
	if config.KeyStoreName == "" {
		config.KeyStoreName = "embargo-key-index"
	}
	if config.TimeStoreName == "" {
		config.TimeStoreName = "embargo-time-index"
	}
	if config.LookupStoreName == "" {
		config.LookupStoreName = "embargo-lookup"
	}

	scanInterval := DefaultScanInterval
	if config.ScanIntervalMs > 0 {
		scanInterval = time.Duration(config.ScanIntervalMs) * time.Millisecond
	}

	inputSubjects := config.Ports.InputSubjects()
	outputSubjects := config.Ports.OutputSubjects()

	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "DelayedPublisher", "NewProcessor",
			"no input subjects configured")
	}
	if len(outputSubjects) != 1 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "DelayedPublisher", "NewProcessor",
			"exactly one loopback subject required")
	}

	metrics, err := newPublisherMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize delayed publisher metrics", "error", err)
		metrics = nil
	}

	return &Processor{
		name:         "delayed-publisher",
		subjects:     inputSubjects,
		loopbackSubj: outputSubjects[0],
		config:       config,
		scanInterval: scanInterval,
		natsClient:   deps.NATSClient,
		logger:       deps.GetLoggerWithComponent("delayed-publisher"),
		shutdown:     make(chan struct{}),
		metrics:      metrics,
	}, nil
}

// Initialize opens the deadline indexes. With a data directory configured
// they live in Pebble; otherwise in memory.
func (p *Processor) Initialize() error {
	if p.keyStore != nil && p.timeStore != nil {
		return nil // Injected (tests) or already initialized
	}

	if p.config.DataDir == "" {
		p.keyStore = memstore.New()
		p.timeStore = memstore.New()
		p.logger.Warn("No data directory configured; deadline indexes are in-memory only")
		return nil
	}

	keyStore, err := pebblestore.Open(filepath.Join(p.config.DataDir, p.config.KeyStoreName))
	if err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "Initialize", "open key index")
	}
	timeStore, err := pebblestore.Open(filepath.Join(p.config.DataDir, p.config.TimeStoreName))
	if err != nil {
		_ = keyStore.Close()
		return errors.WrapFatal(err, "DelayedPublisher", "Initialize", "open time index")
	}

	p.keyStore = keyStore
	p.timeStore = timeStore
	return nil
}

// Start binds the lookup bucket, subscribes to the change stream, and
// launches the periodic scan.
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "DelayedPublisher", "Start", "check running state")
	}
	if p.keyStore == nil || p.timeStore == nil {
		return errors.WrapFatal(errors.ErrNotStarted, "DelayedPublisher", "Start", "indexes not initialized")
	}

	if p.engine == nil {
		if p.natsClient == nil {
			return errors.WrapFatal(errors.ErrMissingConfig, "DelayedPublisher", "Start", "NATS client required")
		}

		bucket, err := p.natsClient.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      p.config.LookupStoreName,
			Description: "Latest normalized body per record key",
		})
		if err != nil {
			return errors.WrapTransient(err, "DelayedPublisher", "Start",
				fmt.Sprintf("bind bucket %s", p.config.LookupStoreName))
		}

		p.engine = NewEngine(
			p.keyStore,
			p.timeStore,
			p.natsClient.NewKVStore(bucket),
			p.republishRecord,
			p.logger,
		)
	}

	for _, subject := range p.subjects {
		if err := p.natsClient.Subscribe(ctx, subject, p.handleMessage); err != nil {
			return errors.WrapTransient(err, "DelayedPublisher", "Start",
				fmt.Sprintf("subscribe to %s", subject))
		}
	}

	p.wg.Add(1)
	go p.scanLoop(ctx)

	p.mu.Lock()
	p.running = true
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("Delayed publisher started",
		"input_subjects", p.subjects,
		"loopback_subject", p.loopbackSubj,
		"scan_interval", p.scanInterval,
		"key_store", p.config.KeyStoreName,
		"time_store", p.config.TimeStoreName)

	return nil
}

// Stop halts the scan loop and closes the indexes.
func (p *Processor) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running {
		return nil
	}

	close(p.shutdown)

	waitCh := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"DelayedPublisher", "Stop", "wait for scan loop")
	}

	if err := p.keyStore.Close(); err != nil {
		p.logger.Error("Failed to close key index", "error", err)
	}
	if err := p.timeStore.Close(); err != nil {
		p.logger.Error("Failed to close time index", "error", err)
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// scanLoop drives the periodic wall-clock scan until shutdown.
func (p *Processor) scanLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			start := time.Now()
			republished, err := p.engine.Scan(ctx)
			if err != nil {
				atomic.AddInt64(&p.errorCount, 1)
				p.metrics.recordError("scan")
				if errors.IsFatal(err) {
					// Store failure: stop scanning and report unhealthy so
					// the substrate restarts the task. The persisted
					// indexes reconstruct state, and the first scan after
					// restart catches up elapsed deadlines.
					p.logger.Error("Fatal store failure; scan loop stopped", "error", err)
					p.mu.Lock()
					p.running = false
					p.mu.Unlock()
					return
				}
				p.logger.Error("Scan failed", "error", err)
				continue
			}
			p.metrics.recordScan(republished, time.Since(start))
			if republished > 0 {
				p.logger.Info("Scan republished due records", "count", republished)
			}
		}
	}
}

// handleMessage applies one change event to the deadline indexes
func (p *Processor) handleMessage(ctx context.Context, msgData []byte) {
	atomic.AddInt64(&p.eventsProcessed, 1)

	record, err := message.ParseRecord(msgData)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("parse")
		p.logger.Debug("Dropping unparseable change event", "error", err)
		return
	}

	action, err := p.engine.HandleChange(ctx, record)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.metrics.recordError("event")
		p.logger.Error("Failed to apply change event",
			"key", record.Key,
			"action", action,
			"error", err)
		return
	}

	p.metrics.recordEvent(action)
}

// republishRecord re-enters a stored record into the input stream. The
// body still marks the record private, but by now its deadline is in the
// past: the normalizer -> lookup -> emitter path re-evaluates the policy
// and exposes it, and this processor's own event rule cancels the
// deadline instead of looping.
func (p *Processor) republishRecord(ctx context.Context, key string, value []byte) error {
	data, err := message.NewRecord(key, value, p.name).Encode()
	if err != nil {
		return err
	}
	return p.natsClient.Publish(ctx, p.loopbackSubj, data)
}

// Meta returns metadata describing this processor component.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.name,
		Type:        "processor",
		Description: "Republishes embargoed records when their privacy deadline elapses",
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

// OutputPorts returns the loopback port into the input stream.
func (p *Processor) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "loopback",
			Direction:   component.DirectionOutput,
			Required:    true,
			Subject:     p.loopbackSubj,
			Description: "Republished records re-enter the input stream",
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

// Register registers the delayed publisher with the given registry
func Register(registry *component.Registry) error {
	return registry.Register(component.Registration{
		Name:        "delayed_publisher",
		Factory:     NewProcessor,
		Type:        "processor",
		Description: "Deadline-driven republisher for embargoed records",
		Version:     "0.1.0",
	})
}

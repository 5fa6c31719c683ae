// Package service composes the embargo pipeline from configuration and
// manages component lifecycle.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/config"
	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/output/websocket"
	"github.com/c360/embargo/processor/delayedpub"
	"github.com/c360/embargo/processor/emitter"
	"github.com/c360/embargo/processor/lookup"
	"github.com/c360/embargo/processor/normalizer"
)

// recordStreamName is the JetStream stream capturing the record subjects
// for durable history.
const recordStreamName = "EMBARGO_RECORDS"

// Service owns the pipeline components and drives their lifecycle.
// Components start downstream-first so no stage emits into a void, and
// stop in reverse.
type Service struct {
	cfg      *config.Config
	deps     component.Dependencies
	registry *component.Registry
	logger   *slog.Logger

	managed []*component.ManagedComponent
}

// New builds the pipeline from configuration. Components are created but
// not started.
func New(cfg *config.Config, deps component.Dependencies) (*Service, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Service", "New", "config required")
	}

	registry := component.NewRegistry()
	for _, register := range []func(*component.Registry) error{
		normalizer.Register,
		lookup.Register,
		delayedpub.Register,
		emitter.Register,
		websocket.Register,
	} {
		if err := register(registry); err != nil {
			return nil, errors.Wrap(err, "Service", "New", "register component types")
		}
	}

	s := &Service{
		cfg:      cfg,
		deps:     deps,
		registry: registry,
		logger:   deps.GetLoggerWithComponent("service"),
	}

	if err := s.buildPipeline(); err != nil {
		return nil, err
	}

	return s, nil
}

// buildPipeline instantiates the components in start order:
// downstream-first, ending with the normalizer at the pipeline's mouth.
func (s *Service) buildPipeline() error {
	type instance struct {
		typeName string
		config   any
	}

	instances := []instance{}

	if s.cfg.Websocket.Enabled {
		instances = append(instances, instance{
			typeName: "websocket_output",
			config: websocket.Config{
				Ports: inOnlyPorts(s.cfg.Subjects.Output),
				Addr:  s.cfg.Websocket.Addr,
			},
		})
	}

	instances = append(instances,
		instance{
			typeName: "publishing_emitter",
			config: emitter.Config{
				Ports: pipePorts(s.cfg.Subjects.Changes, s.cfg.Subjects.Output),
			},
		},
		instance{
			typeName: "delayed_publisher",
			config: delayedpub.Config{
				Ports:           pipePorts(s.cfg.Subjects.Changes, s.cfg.Subjects.Input),
				KeyStoreName:    s.cfg.Stores.KeyStoreName,
				TimeStoreName:   s.cfg.Stores.TimeStoreName,
				LookupStoreName: s.cfg.Stores.LookupStoreName,
				DataDir:         s.cfg.Stores.DataDir,
				ScanIntervalMs:  s.cfg.ScanIntervalMs,
			},
		},
		instance{
			typeName: "lookup_table",
			config: lookup.Config{
				Ports:           pipePorts(s.cfg.Subjects.Normalized, s.cfg.Subjects.Changes),
				LookupStoreName: s.cfg.Stores.LookupStoreName,
			},
		},
		instance{
			typeName: "normalizer",
			config: normalizer.Config{
				Ports: pipePorts(s.cfg.Subjects.Input, s.cfg.Subjects.Normalized),
			},
		},
	)

	for i, inst := range instances {
		rawConfig, err := json.Marshal(inst.config)
		if err != nil {
			return errors.Wrap(err, "Service", "buildPipeline",
				fmt.Sprintf("marshal %s config", inst.typeName))
		}

		comp, err := s.registry.Create(inst.typeName, rawConfig, s.deps)
		if err != nil {
			return err
		}

		s.managed = append(s.managed, &component.ManagedComponent{
			Component:  comp,
			State:      component.StateCreated,
			StartOrder: i,
		})
	}

	return nil
}

// pipePorts builds a one-in, one-out port configuration
func pipePorts(input, output string) *component.PortConfig {
	return &component.PortConfig{
		Inputs: []component.PortDefinition{
			{Name: "in", Type: "nats", Subject: input, Required: true},
		},
		Outputs: []component.PortDefinition{
			{Name: "out", Type: "nats", Subject: output, Required: true},
		},
	}
}

// inOnlyPorts builds an input-only port configuration
func inOnlyPorts(input string) *component.PortConfig {
	return &component.PortConfig{
		Inputs: []component.PortDefinition{
			{Name: "in", Type: "nats", Subject: input, Required: true},
		},
	}
}

// Components returns the managed components in start order.
func (s *Service) Components() []component.Discoverable {
	comps := make([]component.Discoverable, len(s.managed))
	for i, mc := range s.managed {
		comps[i] = mc.Component
	}
	return comps
}

// provisionStream creates the durable record stream covering all pipeline
// subjects so the record log survives restarts.
func (s *Service) provisionStream(ctx context.Context) error {
	subjects := []string{
		s.cfg.Subjects.Input,
		s.cfg.Subjects.Normalized,
		s.cfg.Subjects.Changes,
		s.cfg.Subjects.Output,
	}

	_, err := s.deps.NATSClient.CreateStream(ctx, jetstream.StreamConfig{
		Name:        recordStreamName,
		Description: "Durable log of the embargo record pipeline",
		Subjects:    subjects,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return errors.WrapTransient(err, "Service", "provisionStream", "create record stream")
	}
	return nil
}

// Start initializes and starts every component, downstream-first.
func (s *Service) Start(ctx context.Context) error {
	if s.deps.NATSClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Service", "Start", "NATS client required")
	}

	if err := s.provisionStream(ctx); err != nil {
		// The stream is durability sugar; plain subjects still work
		s.logger.Warn("Record stream provisioning failed; continuing without durable log",
			"error", err)
	}

	for _, mc := range s.managed {
		lc, ok := component.AsLifecycleComponent(mc.Component)
		if !ok {
			continue
		}

		name := mc.Component.Meta().Name

		if err := lc.Initialize(); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			return errors.Wrap(err, "Service", "Start", fmt.Sprintf("initialize %s", name))
		}
		mc.State = component.StateInitialized

		mc.Context, mc.Cancel = context.WithCancel(ctx)
		if err := lc.Start(mc.Context); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			return errors.Wrap(err, "Service", "Start", fmt.Sprintf("start %s", name))
		}
		mc.State = component.StateStarted

		s.logger.Info("Component started", "name", name)
	}

	return nil
}

// Stop stops every started component in reverse start order.
func (s *Service) Stop(timeout time.Duration) error {
	var firstErr error

	for i := len(s.managed) - 1; i >= 0; i-- {
		mc := s.managed[i]
		if mc.State != component.StateStarted {
			continue
		}

		lc, ok := component.AsLifecycleComponent(mc.Component)
		if !ok {
			continue
		}

		name := mc.Component.Meta().Name
		if err := lc.Stop(timeout); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			s.logger.Error("Component stop failed", "name", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if mc.Cancel != nil {
			mc.Cancel()
		}
		mc.State = component.StateStopped
		s.logger.Info("Component stopped", "name", name)
	}

	return firstErr
}

// Healthy reports whether every managed component is healthy.
func (s *Service) Healthy() bool {
	for _, mc := range s.managed {
		if !mc.Component.Health().Healthy {
			return false
		}
	}
	return len(s.managed) > 0
}

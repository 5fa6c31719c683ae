// Package websocket provides a live feed of the output stream: connected
// clients receive every record published on the output subject.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/natsclient"
)

// Config holds configuration for the websocket output
type Config struct {
	Ports *component.PortConfig `json:"ports"`
	Addr  string                `json:"addr"`
	Path  string                `json:"path,omitempty"`
}

// DefaultConfig returns the default configuration for the websocket output
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "records_out",
					Type:        "nats",
					Subject:     "embargo.records.out",
					Required:    true,
					Description: "External output stream to broadcast",
				},
			},
		},
		Addr: ":8099",
		Path: "/ws",
	}
}

// Output broadcasts the output subject to websocket clients. Slow clients
// are dropped rather than allowed to stall the broadcast.
type Output struct {
	name     string
	subjects []string
	addr     string
	path     string

	natsClient *natsclient.Client
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	server     *http.Server

	clients   map[*client]struct{}
	clientsMu sync.Mutex

	// Lifecycle management
	shutdown    chan struct{}
	wg          sync.WaitGroup
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	messagesSent int64
	errorCount   int64
}

// client is one connected websocket consumer
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewOutput creates a websocket output from configuration
func NewOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "WebsocketOutput", "NewOutput", "config unmarshal")
		}
	}

	if config.Ports == nil {
		config.Ports = DefaultConfig().Ports
	}
	if config.Addr == "" {
		config.Addr = ":8099"
	}
	if config.Path == "" {
		config.Path = "/ws"
	}

	inputSubjects := config.Ports.InputSubjects()
	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(
			errors.ErrInvalidConfig, "WebsocketOutput", "NewOutput",
			"no input subjects configured")
	}

	return &Output{
		name:       "websocket-output",
		subjects:   inputSubjects,
		addr:       config.Addr,
		path:       config.Path,
		natsClient: deps.NATSClient,
		logger:     deps.GetLoggerWithComponent("websocket-output"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:  make(map[*client]struct{}),
		shutdown: make(chan struct{}),
	}, nil
}

// Initialize prepares the output (no-op; the server binds in Start)
func (w *Output) Initialize() error {
	return nil
}

// Start subscribes to the output subject and serves websocket clients
func (w *Output) Start(ctx context.Context) error {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if w.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "WebsocketOutput", "Start", "check running state")
	}
	if w.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "WebsocketOutput", "Start", "NATS client required")
	}

	for _, subject := range w.subjects {
		if err := w.natsClient.Subscribe(ctx, subject, w.handleMessage); err != nil {
			return errors.WrapTransient(err, "WebsocketOutput", "Start",
				fmt.Sprintf("subscribe to %s", subject))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleWebSocket)
	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.Error("Websocket server failed", "error", err)
		}
	}()

	w.mu.Lock()
	w.running = true
	w.startTime = time.Now()
	w.mu.Unlock()

	w.logger.Info("Websocket output started",
		"addr", w.addr,
		"path", w.path,
		"input_subjects", w.subjects)

	return nil
}

// Stop closes the server and all client connections
func (w *Output) Stop(timeout time.Duration) error {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if !w.running {
		return nil
	}

	close(w.shutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.logger.Error("Websocket server shutdown failed", "error", err)
	}

	w.clientsMu.Lock()
	for c := range w.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(w.clients, c)
	}
	w.clientsMu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// handleMessage broadcasts one output record to every connected client
func (w *Output) handleMessage(_ context.Context, msgData []byte) {
	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()

	for c := range w.clients {
		select {
		case c.send <- msgData:
			atomic.AddInt64(&w.messagesSent, 1)
		default:
			// Slow client: drop it
			w.logger.Warn("Dropping slow websocket client")
			close(c.send)
			_ = c.conn.Close()
			delete(w.clients, c)
		}
	}
}

// handleWebSocket upgrades one HTTP connection and pumps records to it
func (w *Output) handleWebSocket(wr http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(wr, r, nil)
	if err != nil {
		atomic.AddInt64(&w.errorCount, 1)
		w.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}

	w.clientsMu.Lock()
	w.clients[c] = struct{}{}
	w.clientsMu.Unlock()

	w.wg.Add(1)
	go w.writePump(c)
}

// writePump delivers queued records to one client until it disconnects
func (w *Output) writePump(c *client) {
	defer w.wg.Done()
	defer func() {
		w.clientsMu.Lock()
		delete(w.clients, c)
		w.clientsMu.Unlock()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-w.shutdown:
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// Meta returns metadata describing this output component.
func (w *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        w.name,
		Type:        "output",
		Description: "Websocket broadcast of the output stream",
		Version:     "0.1.0",
	}
}

// InputPorts returns the NATS subjects this output consumes.
func (w *Output) InputPorts() []component.Port {
	ports := make([]component.Port, len(w.subjects))
	for i, subj := range w.subjects {
		ports[i] = component.Port{
			Name:      fmt.Sprintf("input_%d", i),
			Direction: component.DirectionInput,
			Required:  true,
			Subject:   subj,
		}
	}
	return ports
}

// OutputPorts returns no NATS ports; the websocket side is external.
func (w *Output) OutputPorts() []component.Port {
	return []component.Port{}
}

// Health returns the current health status of this output.
func (w *Output) Health() component.HealthStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    w.running,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&w.errorCount)),
		Uptime:     time.Since(w.startTime),
	}
}

// ClientCount returns the number of connected clients.
func (w *Output) ClientCount() int {
	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	return len(w.clients)
}

// Register registers the websocket output with the given registry
func Register(registry *component.Registry) error {
	return registry.Register(component.Registration{
		Name:        "websocket_output",
		Factory:     NewOutput,
		Type:        "output",
		Description: "Websocket broadcast of the output stream",
		Version:     "0.1.0",
	})
}

// Package meridian implements C11: the MeridianBus, a typed bounded
// pub/sub connecting components across data, control, and temporal
// channel kinds, with per-meridian back-pressure metrics.
//
// Grounded on the retrieval pack's ODSapper-CLIAIRMONITOR repo, which
// solves the same shape of problem by embedding
// github.com/nats-io/nats-server/v2 and talking to it in-process through
// github.com/nats-io/nats.go (internal/nats/client.go there). This bus
// starts its own embedded server bound to a loopback-only random port at
// construction time — never exposed externally — and wraps the client
// connection the same way: thin convenience methods over *nats.Conn,
// with the reconnect/disconnect handlers the teacher's-pack sibling
// installs.
package meridian

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	nc "github.com/nats-io/nats.go"

	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/types"
)

const (
	defaultCapacity     = 1000
	publishTimeout      = 1 * time.Second
	timeSyncInterval    = 60 * time.Second
	serverReadyDeadline = 5 * time.Second
)

// Kind names the three meridian channel shapes the spec distinguishes.
type Kind string

const (
	KindData     Kind = "data"
	KindControl  Kind = "control"
	KindTemporal Kind = "temporal"
)

func subject(kind Kind, topic string) string {
	switch kind {
	case KindControl:
		return "meridian.control"
	case KindTemporal:
		return "meridian.temporal"
	default:
		return "meridian.data." + topic
	}
}

// Envelope is what travels over a meridian subject. Priority is carried
// for data meridians; Params for control commands.
type Envelope struct {
	MeridianID string          `json:"meridian_id"`
	Kind       Kind            `json:"kind"`
	Topic      string          `json:"topic,omitempty"`
	Priority   string          `json:"priority,omitempty"`
	Command    string          `json:"command,omitempty"`
	Target     string          `json:"target,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	SentAt     time.Time       `json:"sent_at"`
}

// Message is the decoded delivery handed to a Subscribe callback.
type Message struct {
	Envelope Envelope
	Data     []byte
}

type meridianStats struct {
	mu      sync.Mutex
	sent    int64
	received int64
	dropped  int64
	queue    int
}

// Bus is the embedded MeridianBus: one in-process NATS server plus a
// client connection, fanning out data/control/temporal meridians as NATS
// subjects.
type Bus struct {
	logger *slog.Logger
	ns     *server.Server
	conn   *nc.Conn
	capacity int

	mu    sync.Mutex
	stats map[string]*meridianStats

	stopTimeSync context.CancelFunc
}

// New starts an embedded, loopback-only NATS server on a random port and
// connects an in-process client to it. One capacity applies to every
// meridian opened through this bus; there is no per-call override.
func New(logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "meridian")

	opts := &server.Options{
		Host:     "127.0.0.1",
		Port:     -1, // let the OS pick a free port
		HTTPPort: -1, // disable monitoring endpoint
		NoLog:    true,
		NoSigs:   true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("start embedded nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(serverReadyDeadline) {
		return nil, fmt.Errorf("embedded nats server not ready: %w", kerrors.ErrUnavailable)
	}

	conn, err := nc.Connect(ns.ClientURL(),
		nc.Name("growthkernel-meridianbus"),
		nc.ReconnectWait(time.Second),
		nc.MaxReconnects(-1),
		nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			if err != nil {
				logger.Warn("meridian bus disconnected", "error", err)
			}
		}),
		nc.ReconnectHandler(func(c *nc.Conn) {
			logger.Info("meridian bus reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect to embedded nats server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger:       logger,
		ns:           ns,
		conn:         conn,
		capacity:     defaultCapacity,
		stats:        make(map[string]*meridianStats),
		stopTimeSync: cancel,
	}
	go b.runTimeSync(ctx)
	return b, nil
}

// Close closes the client connection (without draining it) and shuts the
// embedded server down.
func (b *Bus) Close() {
	b.stopTimeSync()
	if b.conn != nil {
		b.conn.Close()
	}
	if b.ns != nil {
		b.ns.Shutdown()
	}
}

func (b *Bus) statsFor(meridianID string) *meridianStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stats[meridianID]
	if !ok {
		s = &meridianStats{}
		b.stats[meridianID] = s
	}
	return s
}

// Publish sends payload on a data meridian identified by topic. Blocks
// up to 1s; on timeout the packet is dropped and the drop counter for
// this meridian increments — publishers never block the core longer
// than that.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte, priority string) error {
	return b.publish(ctx, KindData, topic, "", "", priority, payload)
}

// SendCommand multicasts a control command to all connected subscribers
// of the control meridian, optionally addressed to a single target node.
func (b *Bus) SendCommand(ctx context.Context, cmd string, params []byte, target string) error {
	return b.publish(ctx, KindControl, "", cmd, target, "", params)
}

// ErrQueueFull is returned when a meridian's in-flight publish count has
// reached Bus capacity; the caller's packet is dropped without attempting
// delivery.
var ErrQueueFull = fmt.Errorf("meridian queue full: %w", kerrors.ErrUnavailable)

func (b *Bus) publish(ctx context.Context, kind Kind, topic, cmd, target, priority string, payload []byte) error {
	meridianID := subject(kind, topic)
	stats := b.statsFor(meridianID)

	stats.mu.Lock()
	if stats.queue >= b.capacity {
		stats.dropped++
		stats.mu.Unlock()
		b.logger.Warn("meridian publish dropped, queue full", "meridian_id", meridianID, "capacity", b.capacity)
		return fmt.Errorf("publish to %s: %w", meridianID, ErrQueueFull)
	}
	stats.queue++
	stats.mu.Unlock()
	defer func() {
		stats.mu.Lock()
		stats.queue--
		stats.mu.Unlock()
	}()

	env := Envelope{
		MeridianID: meridianID,
		Kind:       kind,
		Topic:      topic,
		Priority:   priority,
		Command:    cmd,
		Target:     target,
		Payload:    payload,
		SentAt:     time.Now(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode meridian envelope: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.conn.Publish(meridianID, data) }()

	select {
	case err := <-done:
		if err != nil {
			stats.mu.Lock()
			stats.dropped++
			stats.mu.Unlock()
			return fmt.Errorf("publish to %s: %w", meridianID, kerrors.ErrTransient)
		}
		stats.mu.Lock()
		stats.sent++
		stats.mu.Unlock()
		return nil
	case <-pctx.Done():
		stats.mu.Lock()
		stats.dropped++
		stats.mu.Unlock()
		b.logger.Warn("meridian publish dropped on timeout", "meridian_id", meridianID)
		return fmt.Errorf("publish to %s: %w", meridianID, kerrors.ErrTimeout)
	}
}

// Subscribe delivers every message published on a data meridian's topic
// to handler, in FIFO order, at-most-once. nodeID names the subscriber
// for logging only; NATS' own per-subscription ordering provides the
// FIFO guarantee.
func (b *Bus) Subscribe(nodeID, topic string, handler func(Message)) (func(), error) {
	return b.subscribe(subject(KindData, topic), nodeID, handler)
}

// SubscribeControl delivers every control-meridian command to handler.
func (b *Bus) SubscribeControl(nodeID string, handler func(Message)) (func(), error) {
	return b.subscribe(subject(KindControl, ""), nodeID, handler)
}

// SubscribeTemporal delivers periodic time_sync broadcasts to handler.
func (b *Bus) SubscribeTemporal(nodeID string, handler func(Message)) (func(), error) {
	return b.subscribe(subject(KindTemporal, ""), nodeID, handler)
}

func (b *Bus) subscribe(meridianID, nodeID string, handler func(Message)) (func(), error) {
	stats := b.statsFor(meridianID)
	sub, err := b.conn.Subscribe(meridianID, func(msg *nc.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.logger.Error("malformed meridian envelope", "meridian_id", meridianID, "node_id", nodeID, "error", err)
			return
		}
		stats.mu.Lock()
		stats.received++
		stats.mu.Unlock()
		handler(Message{Envelope: env, Data: env.Payload})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s for %s: %w", meridianID, nodeID, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// runTimeSync broadcasts a time_sync packet on the temporal meridian
// every 60s until ctx is cancelled (§4.11).
func (b *Bus) runTimeSync(ctx context.Context) {
	ticker := time.NewTicker(timeSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, _ := json.Marshal(map[string]any{"type": "time_sync", "at": time.Now()})
			if err := b.publish(context.Background(), KindTemporal, "", "time_sync", "", "", payload); err != nil {
				b.logger.Warn("time_sync broadcast failed", "error", err)
			}
		}
	}
}

// Metrics returns the current MeridianMetrics snapshot for meridianID —
// the shape DataLifecycleAgent's back-pressure monitor consumes.
func (b *Bus) Metrics(meridianID string) types.MeridianMetrics {
	stats := b.statsFor(meridianID)
	stats.mu.Lock()
	defer stats.mu.Unlock()

	var errorRate float64
	if stats.sent > 0 {
		errorRate = float64(stats.dropped) / float64(stats.sent+stats.dropped)
	}
	return types.MeridianMetrics{
		MeridianID:      meridianID,
		Timestamp:       time.Now(),
		PacketsSent:     stats.sent,
		PacketsReceived: stats.received,
		PacketsDropped:  stats.dropped,
		QueueSize:       stats.queue,
		ErrorRate:       errorRate,
	}
}

// DataSubject returns the NATS subject a data meridian topic maps to, so
// callers can label metrics/alerts by meridian id without depending on
// this package's internal naming.
func DataSubject(topic string) string { return subject(KindData, topic) }

// ControlSubject returns the control meridian's subject.
func ControlSubject() string { return subject(KindControl, "") }

// TemporalSubject returns the temporal meridian's subject.
func TemporalSubject() string { return subject(KindTemporal, "") }

// Package events carries negotiation boundary events to the transport
// collaborators. Delivery is fire-and-forget: sink failures are logged and
// never reach the caller.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	NegotiationCreated   Type = "negotiation.created"
	NegotiationCountered Type = "negotiation.countered"
	NegotiationAccepted  Type = "negotiation.accepted"
	NegotiationExpired   Type = "negotiation.expired"
	NegotiationCancelled Type = "negotiation.cancelled"
	BookingCreated       Type = "booking.created"
	BookingCancelled     Type = "booking.cancelled"
)

const SchemaVersion = "1.0"

// Envelope wraps every event.
type Envelope struct {
	EventID        string         `json:"event_id" bson:"_id"`
	Type           Type           `json:"event_type" bson:"event_type"`
	SchemaVersion  string         `json:"schema_version" bson:"schema_version"`
	IdempotencyKey string         `json:"idempotency_key" bson:"idempotency_key"`
	Timestamp      time.Time      `json:"timestamp" bson:"timestamp"`
	Source         string         `json:"source" bson:"source"`
	NegotiationID  string         `json:"negotiation_id,omitempty" bson:"negotiation_id,omitempty"`
	BookingID      string         `json:"booking_id,omitempty" bson:"booking_id,omitempty"`
	Data           map[string]any `json:"data" bson:"data"`
}

// Publisher is what the engine emits through.
type Publisher interface {
	Publish(ctx context.Context, env Envelope)
}

// Sink is one delivery target.
type Sink interface {
	Name() string
	Write(ctx context.Context, env Envelope) error
}

// Dispatcher fans envelopes out to its sinks. Until Start is called delivery
// is synchronous; after Start a single worker drains a buffered queue so
// slow sinks never hold up negotiation actions.
type Dispatcher struct {
	source string
	logger *slog.Logger
	sinks  []Sink

	mu    sync.RWMutex
	queue chan Envelope
	done  chan struct{}
}

func NewDispatcher(source string, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{source: source, logger: logger, sinks: sinks}
}

// Start runs the background worker until ctx is cancelled or Close is called.
func (d *Dispatcher) Start(ctx context.Context, buffer int) {
	if buffer <= 0 {
		buffer = 256
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue != nil {
		return
	}
	d.queue = make(chan Envelope, buffer)
	d.done = make(chan struct{})
	go d.worker(ctx, d.queue, d.done)
}

func (d *Dispatcher) worker(ctx context.Context, queue <-chan Envelope, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			// drain what was already accepted
			for {
				select {
				case env, ok := <-queue:
					if !ok {
						return
					}
					d.deliver(context.WithoutCancel(ctx), env)
				default:
					return
				}
			}
		case env, ok := <-queue:
			if !ok {
				return
			}
			d.deliver(ctx, env)
		}
	}
}

// Close stops intake and waits for queued envelopes to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	queue, done := d.queue, d.done
	d.queue = nil
	d.mu.Unlock()
	if queue == nil {
		return
	}
	close(queue)
	<-done
}

// Publish stamps the envelope and hands it to the sinks.
func (d *Dispatcher) Publish(ctx context.Context, env Envelope) {
	if env.EventID == "" {
		env.EventID = "evt_" + uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if env.SchemaVersion == "" {
		env.SchemaVersion = SchemaVersion
	}
	if env.Source == "" {
		env.Source = d.source
	}
	if env.IdempotencyKey == "" {
		env.IdempotencyKey = fmt.Sprintf("%s:%s:%s", env.Type, env.NegotiationID, env.EventID)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.queue == nil {
		d.deliver(ctx, env)
		return
	}
	select {
	case d.queue <- env:
	case <-ctx.Done():
		d.logger.Warn("event_dropped", "event_type", env.Type, "event_id", env.EventID, "error", ctx.Err())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) {
	d.logger.InfoContext(ctx, "event_published",
		"event_id", env.EventID,
		"event_type", env.Type,
		"negotiation_id", env.NegotiationID,
		"source", env.Source,
	)
	for _, s := range d.sinks {
		if err := s.Write(ctx, env); err != nil {
			d.logger.WarnContext(ctx, "event_sink_failed",
				"sink", s.Name(),
				"event_type", env.Type,
				"event_id", env.EventID,
				"error", err,
			)
		}
	}
}

// Recorder keeps envelopes in memory. Useful as a sink in tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Write(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

// Publish lets a Recorder stand in for a Publisher directly.
func (r *Recorder) Publish(ctx context.Context, env Envelope) { _ = r.Write(ctx, env) }

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded envelopes by type.
func (r *Recorder) OfType(t Type) []Envelope {
	var out []Envelope
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

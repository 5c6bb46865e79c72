// Package events delivers outbound workflow events to notification
// collaborators. Delivery is best effort and happens after the command that
// produced the event has committed.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/model"
)

type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// LogPublisher writes events as structured log lines, for deployments where a
// log shipper feeds the notification pipeline.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, event model.Event) {
	p.log.Info().
		Str("event", string(event.Type)).
		Str("process_id", event.ProcessID.String()).
		Str("subject_id", event.SubjectID.String()).
		Str("from", event.From).
		Str("to", event.To).
		Str("actor_role", string(event.Actor.Role)).
		Str("actor_id", event.Actor.UserID.String()).
		Time("at", event.At).
		Msg("workflow event")
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *Recorder) OfType(t model.EventType) []model.Event {
	var out []model.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

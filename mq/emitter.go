// Package mq forwards domain events to message sinks (Redis pub/sub and
// Kafka) for downstream consumers.
package mq

import (
	"context"
	"encoding/json"
	"time"

	"foodcart/metrics"
	"foodcart/state"
	"foodcart/store"

	"github.com/sirupsen/logrus"
)

// Envelope is the wire form of a forwarded event.
type Envelope struct {
	Event      store.EventKind `json:"event"`
	EntityID   string          `json:"entityId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    any             `json:"payload"`
}

// Sink delivers encoded envelopes. key is the entity id.
type Sink interface {
	Name() string
	Send(ctx context.Context, key string, data []byte) error
	Close() error
}

const queueSize = 1024

// Emitter queues locally made changes and sends them to every sink from a
// single goroutine. Changes that arrived through a store's change feed are
// skipped; the instance that made them has already emitted them.
type Emitter struct {
	sinks []Sink
	queue chan Envelope
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewEmitter(log logrus.FieldLogger, sinks ...Sink) *Emitter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Emitter{
		sinks: sinks,
		queue: make(chan Envelope, queueSize),
		now:   time.Now,
		log:   log.WithField("component", "mq"),
	}
}

// Publish queues c. It never blocks; a full queue drops the event.
func (e *Emitter) Publish(_ context.Context, c state.Change) {
	if c.Origin != state.OriginLocal || len(e.sinks) == 0 {
		return
	}
	env := Envelope{Event: c.Kind, EntityID: c.EntityID(), OccurredAt: e.now().UTC()}
	switch {
	case c.Order != nil:
		env.Payload = c.Order
	case c.Item != nil:
		env.Payload = c.Item
	}
	select {
	case e.queue <- env:
	default:
		e.log.WithFields(logrus.Fields{"event": env.Event, "id": env.EntityID}).Warn("emit queue full, event dropped")
	}
}

// Run sends queued events until ctx is done, then sends whatever is still
// queued and closes the sinks.
func (e *Emitter) Run(ctx context.Context) {
	defer e.close()
	for {
		select {
		case env := <-e.queue:
			e.emit(ctx, env)
		case <-ctx.Done():
			drain := context.WithoutCancel(ctx)
			for {
				select {
				case env := <-e.queue:
					e.emit(drain, env)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) emit(ctx context.Context, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		e.log.WithError(err).Error("encode event")
		return
	}
	for _, s := range e.sinks {
		err := s.Send(ctx, env.EntityID, data)
		metrics.RecordEmit(s.Name(), err)
		if err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{"sink": s.Name(), "event": env.Event, "id": env.EntityID}).Error("emit failed")
			continue
		}
		e.log.WithFields(logrus.Fields{"sink": s.Name(), "event": env.Event, "id": env.EntityID}).Debug("event emitted")
	}
}

func (e *Emitter) close() {
	for _, s := range e.sinks {
		if err := s.Close(); err != nil {
			e.log.WithError(err).WithField("sink", s.Name()).Warn("close sink")
		}
	}
}

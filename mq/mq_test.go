package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"foodcart/models"
	"foodcart/state"
	"foodcart/store"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recordSink struct {
	mu     sync.Mutex
	keys   []string
	data   [][]byte
	fail   bool
	closed bool
}

func (s *recordSink) Name() string { return "record" }

func (s *recordSink) Send(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.keys = append(s.keys, key)
	s.data = append(s.data, data)
	return nil
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *recordSink) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func orderChange(origin state.Origin) state.Change {
	o := models.Order{ID: "o-1", Status: models.StatusPending, Total: 199}
	return state.Change{Event: store.Event{Kind: store.OrderCreated, Order: &o}, Origin: origin}
}

func TestEmitterForwardsLocalChangesOnly(t *testing.T) {
	sink := &recordSink{}
	e := NewEmitter(quietLog(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { e.Run(ctx); close(done) }()

	e.Publish(ctx, orderChange(state.OriginRemote))
	e.Publish(ctx, orderChange(state.OriginLocal))

	assert.Eventually(t, func() bool { return sink.sent() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.True(t, sink.closed)
	assert.Equal(t, []string{"o-1"}, sink.keys)

	var env struct {
		Event    string         `json:"event"`
		EntityID string         `json:"entityId"`
		Payload  map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(sink.data[0], &env))
	assert.Equal(t, "order.created", env.Event)
	assert.Equal(t, "o-1", env.EntityID)
	assert.Equal(t, "Pending", env.Payload["status"])
}

func TestEmitterDrainsOnShutdown(t *testing.T) {
	sink := &recordSink{}
	e := NewEmitter(quietLog(), sink)
	e.Publish(context.Background(), orderChange(state.OriginLocal))
	e.Publish(context.Background(), orderChange(state.OriginLocal))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx)
	assert.Equal(t, 2, sink.sent())
}

func TestEmitterSurvivesSinkFailure(t *testing.T) {
	bad := &recordSink{fail: true}
	good := &recordSink{}
	e := NewEmitter(quietLog(), bad, good)
	e.Publish(context.Background(), orderChange(state.OriginLocal))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx)
	assert.Equal(t, 0, bad.sent())
	assert.Equal(t, 1, good.sent())
}

func TestKafkaSink(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"x":1}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafkaSinkWithProducer(producer, "orders")
	require.NoError(t, sink.Send(context.Background(), "o-1", []byte(`{"x":1}`)))
	assert.ErrorIs(t, sink.Send(context.Background(), "o-1", []byte(`{}`)), sarama.ErrOutOfBrokers)
	require.NoError(t, sink.Close())
}

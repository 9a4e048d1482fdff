package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"foodcart/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Subscribe holds one pooled connection on LISTEN until ctx is done and
// turns each notification into an event carrying the current record.
func (s *Store) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}

	out := make(chan store.Event, store.FeedBuffer)
	go s.listen(ctx, conn, out)
	return out, nil
}

func (s *Store) listen(ctx context.Context, conn *pgxpool.Conn, out chan<- store.Event) {
	defer close(out)
	defer func() {
		// The session still has LISTEN active; drop it rather than return
		// it to the pool.
		conn.Hijack().Close(context.WithoutCancel(ctx))
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
				s.log.WithError(err).Warn("listen connection lost")
			}
			return
		}
		var nt notice
		if err := json.Unmarshal([]byte(n.Payload), &nt); err != nil {
			s.log.WithError(err).WithField("payload", n.Payload).Warn("bad notification")
			continue
		}
		ev, err := s.resolve(ctx, nt)
		if err != nil {
			s.log.WithError(err).WithField("id", nt.ID).Warn("resolve notification")
			continue
		}
		select {
		case out <- ev:
		default:
			s.log.WithField("id", nt.ID).Warn("change feed full, event dropped")
		}
	}
}

func (s *Store) resolve(ctx context.Context, nt notice) (store.Event, error) {
	switch nt.Kind {
	case store.ItemCreated:
		it, err := s.getItem(ctx, nt.ID)
		if err != nil {
			return store.Event{}, err
		}
		return store.Event{Kind: nt.Kind, Item: &it}, nil
	case store.OrderCreated, store.OrderUpdated:
		o, err := s.getOrder(ctx, nt.ID)
		if err != nil {
			return store.Event{}, err
		}
		return store.Event{Kind: nt.Kind, Order: &o}, nil
	}
	return store.Event{}, fmt.Errorf("unknown event kind %q", nt.Kind)
}

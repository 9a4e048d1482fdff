package supastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"foodcart/store"

	"github.com/gorilla/websocket"
)

const (
	realtimeTopic     = "realtime:foodcart"
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
}

// change is a row change. Newer Realtime servers nest it under "data",
// older ones send it as the payload itself.
type change struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

type changePayload struct {
	change
	Data *change `json:"data"`
}

type channel struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	ref  atomic.Int64
}

func (c *channel) send(topic, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ref := strconv.FormatInt(c.ref.Add(1), 10)
	msg := phxMessage{Topic: topic, Event: event, Payload: data, Ref: ref}
	if event == "phx_join" {
		msg.JoinRef = ref
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// Subscribe joins a Realtime channel listening for changes on both tables.
func (s *Store) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect realtime: %w", err)
	}
	ch := &channel{conn: conn}

	var join joinPayload
	for _, table := range []string{itemsTable, ordersTable} {
		join.Config.PostgresChanges = append(join.Config.PostgresChanges,
			changeFilter{Event: "*", Schema: "public", Table: table})
	}
	if err := ch.send(realtimeTopic, "phx_join", join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join %s: %w", realtimeTopic, err)
	}

	out := make(chan store.Event, store.FeedBuffer)
	go s.heartbeat(ctx, ch)
	go s.read(ctx, ch, out)
	return out, nil
}

func (s *Store) heartbeat(ctx context.Context, ch *channel) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ch.conn.Close()
			return
		case <-ticker.C:
			if err := ch.send("phoenix", "heartbeat", struct{}{}); err != nil {
				s.log.WithError(err).Debug("heartbeat failed")
				return
			}
		}
	}
}

func (s *Store) read(ctx context.Context, ch *channel, out chan<- store.Event) {
	defer close(out)
	defer ch.conn.Close()

	for {
		var msg phxMessage
		if err := ch.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				s.log.WithError(err).Warn("realtime connection lost")
			}
			return
		}
		if msg.Topic != realtimeTopic {
			continue
		}
		switch msg.Event {
		case "phx_reply", "phx_close", "presence_state", "presence_diff", "system":
			continue
		}
		ev, ok, err := decodeChange(msg.Payload)
		if err != nil {
			s.log.WithError(err).WithField("event", msg.Event).Warn("bad realtime payload")
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		default:
			s.log.WithField("id", ev.EntityID()).Warn("change feed full, event dropped")
		}
	}
}

// decodeChange maps an INSERT or UPDATE row change to a store event.
// Deletes and unknown tables are ignored.
func decodeChange(raw json.RawMessage) (store.Event, bool, error) {
	var p changePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return store.Event{}, false, err
	}
	c := p.change
	if p.Data != nil {
		c = *p.Data
	}
	if len(c.Record) == 0 {
		return store.Event{}, false, nil
	}

	switch c.Table {
	case itemsTable:
		if c.Type != "INSERT" {
			return store.Event{}, false, nil
		}
		var r itemRow
		if err := json.Unmarshal(c.Record, &r); err != nil {
			return store.Event{}, false, fmt.Errorf("decode item: %w", err)
		}
		it := r.item()
		return store.Event{Kind: store.ItemCreated, Item: &it}, true, nil
	case ordersTable:
		var kind store.EventKind
		switch c.Type {
		case "INSERT":
			kind = store.OrderCreated
		case "UPDATE":
			kind = store.OrderUpdated
		default:
			return store.Event{}, false, nil
		}
		var r orderRow
		if err := json.Unmarshal(c.Record, &r); err != nil {
			return store.Event{}, false, fmt.Errorf("decode order: %w", err)
		}
		o := r.order()
		return store.Event{Kind: kind, Order: &o}, true, nil
	}
	return store.Event{}, false, nil
}

// Package realtime subscribes to row change notifications from the hosted
// backend over websocket. Events carry no guarantee of completeness; the
// resource stores treat them as refresh hints, not as a replication stream.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Change event types as sent by the backend.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is a single row change notification.
type Event struct {
	Type   string          // INSERT, UPDATE or DELETE
	Table  string          // backend table name
	Row    json.RawMessage // new row state (nil on DELETE)
	OldRow json.RawMessage // previous row state (nil on INSERT)
}

// Feed opens websocket subscriptions against the backend's change stream.
type Feed struct {
	url    string
	apiKey string
	schema string
	logger *zap.Logger
	refs   atomic.Int64
}

// NewFeed creates a feed. url is the websocket endpoint, schema the
// database schema the watched tables live in.
func NewFeed(url, apiKey, schema string, logger *zap.Logger) *Feed {
	return &Feed{
		url:    url,
		apiKey: apiKey,
		schema: schema,
		logger: logger,
	}
}

// phoenix wire frames

type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeSpec `json:"postgres_changes"`
	} `json:"config"`
}

type changeSpec struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type changePayload struct {
	Data struct {
		Type      string          `json:"type"`
		Table     string          `json:"table"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	} `json:"data"`
}

// Subscribe opens a change subscription for one table. filter uses the
// backend's "col=eq.val" syntax and may be empty. Events are delivered on
// the returned channel until ctx is canceled or the connection dies; one
// transparent reconnect is attempted before the channel closes.
func (f *Feed) Subscribe(ctx context.Context, table, filter string) (<-chan Event, error) {
	conn, err := f.dial(ctx, table, filter)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 16)

	go func() {
		defer close(events)
		defer conn.Close()

		reconnected := false
		for {
			if err := f.readLoop(ctx, conn, table, events); err == nil {
				return // ctx canceled
			}
			if reconnected {
				f.logger.Error("realtime: subscription lost",
					zap.String("table", table),
					zap.String("filter", filter),
				)
				return
			}
			reconnected = true

			f.logger.Warn("realtime: reconnecting subscription",
				zap.String("table", table),
				zap.String("filter", filter),
			)
			conn.Close()
			next, err := f.dial(ctx, table, filter)
			if err != nil {
				f.logger.Error("realtime: reconnect failed",
					zap.String("table", table),
					zap.Error(err),
				)
				return
			}
			conn = next
		}
	}()

	return events, nil
}

// dial connects and joins the change topic for one table.
func (f *Feed) dial(ctx context.Context, table, filter string) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s?apikey=%s&vsn=1.0.0", f.url, f.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	var payload joinPayload
	payload.Config.PostgresChanges = []changeSpec{{
		Event:  "*",
		Schema: f.schema,
		Table:  table,
		Filter: filter,
	}}
	raw, err := json.Marshal(payload)
	if err != nil {
		conn.Close()
		return nil, err
	}

	join := frame{
		Topic:   fmt.Sprintf("realtime:%s:%s", f.schema, table),
		Event:   "phx_join",
		Payload: raw,
		Ref:     strconv.FormatInt(f.refs.Add(1), 10),
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime join: %w", err)
	}

	f.logger.Debug("realtime: subscribed",
		zap.String("table", table),
		zap.String("filter", filter),
	)
	return conn, nil
}

// readLoop pumps frames until ctx cancels (returns nil) or the socket
// fails (returns the error). Heartbeats keep the upstream from pruning
// idle topics.
func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, table string, events chan<- Event) error {
	done := make(chan error, 1)

	go func() {
		for {
			var fr frame
			if err := conn.ReadJSON(&fr); err != nil {
				done <- err
				return
			}
			if fr.Event != "postgres_changes" {
				continue // phx_reply, heartbeat ack, presence noise
			}

			var ch changePayload
			if err := json.Unmarshal(fr.Payload, &ch); err != nil {
				f.logger.Warn("realtime: malformed change payload",
					zap.String("table", table),
					zap.Error(err),
				)
				continue
			}

			ev := Event{
				Type:   ch.Data.Type,
				Table:  ch.Data.Table,
				Row:    ch.Data.Record,
				OldRow: ch.Data.OldRecord,
			}
			if ev.Table == "" {
				ev.Table = table
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				done <- nil
				return
			}
		}
	}()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		case err := <-done:
			return err
		case <-heartbeat.C:
			hb := frame{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage(`{}`),
				Ref:     strconv.FormatInt(f.refs.Add(1), 10),
			}
			if err := conn.WriteJSON(hb); err != nil {
				return err
			}
		}
	}
}

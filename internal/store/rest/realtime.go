package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

const heartbeatInterval = 30 * time.Second

// phxMessage is the Phoenix channel frame the realtime service speaks.
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the postgres_changes event body. Record is the row
// post-image.
type changePayload struct {
	Data struct {
		Type   string                `json:"type"`
		Record store.ApprovalRequest `json:"record"`
	} `json:"data"`
}

// subscription is one open row watch. The reader goroutine owns the
// connection and closes updates on exit.
type subscription struct {
	conn    *websocket.Conn
	updates chan store.ApprovalRequest
	cancel  context.CancelFunc
	once    sync.Once
}

var _ store.Subscription = (*subscription)(nil)

// dialRealtime connects to the store's realtime websocket and joins a
// Phoenix channel filtered to UPDATE events on the given row.
func dialRealtime(ctx context.Context, baseURL, anonKey, rowID string) (*subscription, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) +
		"/realtime/v1/websocket?apikey=" + url.QueryEscape(anonKey) + "&vsn=1.0.0"

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}
	conn.SetReadLimit(1 << 20) // 1MB

	topic := "realtime:approval:" + rowID
	join := map[string]any{
		"topic": topic,
		"event": "phx_join",
		"ref":   "1",
		"payload": map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]string{{
					"event":  "UPDATE",
					"schema": "public",
					"table":  requestsTable,
					"filter": "id=eq." + rowID,
				}},
			},
		},
	}
	data, err := json.Marshal(join)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "join encode")
		return nil, err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		conn.Close(websocket.StatusInternalError, "join write")
		return nil, fmt.Errorf("realtime join: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		conn:    conn,
		updates: make(chan store.ApprovalRequest, 4),
		cancel:  cancel,
	}
	go sub.heartbeat(runCtx)
	go sub.read(runCtx)
	return sub, nil
}

// heartbeat keeps the Phoenix connection alive. The service drops clients
// that go quiet for more than a minute.
func (s *subscription) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ref := 2
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat := fmt.Sprintf(`{"topic":"phoenix","event":"heartbeat","payload":{},"ref":"%d"}`, ref)
			ref++
			if err := s.conn.Write(ctx, websocket.MessageText, []byte(beat)); err != nil {
				slog.Debug("realtime heartbeat failed", "error", err)
				return
			}
		}
	}
}

// read pumps change events into the updates channel until the connection
// drops or the subscription is closed.
func (s *subscription) read(ctx context.Context) {
	defer close(s.updates)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("realtime read ended", "error", err)
			}
			return
		}

		var msg phxMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("realtime frame not parseable", "error", err)
			continue
		}
		if msg.Event != "postgres_changes" {
			continue
		}

		var change changePayload
		if err := json.Unmarshal(msg.Payload, &change); err != nil {
			slog.Debug("realtime change not parseable", "error", err)
			continue
		}
		if change.Data.Type != "UPDATE" {
			continue
		}

		select {
		case s.updates <- change.Data.Record:
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscription) Updates() <-chan store.ApprovalRequest { return s.updates }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "done")
	})
	return nil
}

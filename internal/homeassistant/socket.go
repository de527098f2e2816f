package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clambin/climate-guard/pkg/pubsub"
	"github.com/gorilla/websocket"
)

// An Event is a state_changed event received over the Home Assistant websocket API.
type Event struct {
	EntityID string `json:"entity_id"`
	OldState State  `json:"old_state"`
	NewState State  `json:"new_state"`
}

// A Listener subscribes to state_changed events on the Home Assistant websocket API and publishes them
// to its subscribers. On connection loss, it reconnects with a fixed backoff.
type Listener struct {
	*pubsub.Publisher[Event]
	url     string
	token   string
	backoff time.Duration
	logger  *slog.Logger
}

// NewListener returns a Listener for the Home Assistant instance at url.
func NewListener(url, token string, logger *slog.Logger) *Listener {
	return &Listener{
		Publisher: pubsub.New[Event](logger),
		url:       socketURL(url),
		token:     token,
		backoff:   5 * time.Second,
		logger:    logger,
	}
}

func socketURL(url string) string {
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return strings.TrimSuffix(url, "/") + "/api/websocket"
}

// Run connects to Home Assistant and publishes incoming events until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Debug("started")
	defer l.logger.Debug("stopped")

	for {
		if err := l.listen(ctx); err != nil {
			l.logger.Error("connection to Home Assistant lost", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// unblock ReadJSON when ctx is canceled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err = l.authenticate(conn); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err = l.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	l.logger.Debug("subscribed to state_changed events")

	for {
		var msg message
		if err = conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if msg.Type == "event" && msg.Event.EventType == "state_changed" {
			l.Publisher.Publish(msg.Event.Data)
		}
	}
}

func (l *Listener) authenticate(conn *websocket.Conn) error {
	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		return err
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("unexpected message type %q", msg.Type)
	}
	if err := conn.WriteJSON(authRequest{Type: "auth", AccessToken: l.token}); err != nil {
		return err
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return err
	}
	if msg.Type != "auth_ok" {
		return fmt.Errorf("authentication failed: %s", msg.Type)
	}
	return nil
}

func (l *Listener) subscribe(conn *websocket.Conn) error {
	if err := conn.WriteJSON(subscribeRequest{ID: 1, Type: "subscribe_events", EventType: "state_changed"}); err != nil {
		return err
	}
	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		return err
	}
	if msg.Type != "result" || !msg.Success {
		return fmt.Errorf("subscription refused: %s", string(msg.Error))
	}
	return nil
}

type message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success bool            `json:"success,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	Event   struct {
		EventType string `json:"event_type"`
		Data      Event  `json:"data"`
	} `json:"event,omitempty"`
}

type authRequest struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type subscribeRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

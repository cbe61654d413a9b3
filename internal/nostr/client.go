package nostr

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// relayClient holds one outbound connection to a relay, resubscribing
// with a fresh subscription id on every (re)connect.
type relayClient struct {
	url    string
	events chan Event
}

// run dials the relay and reads its subscription feed until ctx is
// cancelled, reconnecting on any read/dial error after a delay that grows
// by one second per attempt, capped at 30 seconds.
func (r *relayClient) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if err := r.connectOnce(ctx); err != nil {
			log.Printf("nostr: relay %s: %v", r.url, err)
		}
		attempt++
		wait := time.Duration(attempt) * time.Second
		if wait > 30*time.Second {
			wait = 30 * time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (r *relayClient) connectOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	subID := uuid.NewString()
	req := []interface{}{
		"REQ", subID,
		map[string]interface{}{"kinds": []int{KindFederationRating, KindFederationAnnouncement}},
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, reqBytes); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
		close(done)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
			return fmt.Errorf("read: %w", err)
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(message, &frame); err != nil || len(frame) < 2 {
			continue
		}
		var frameType string
		if err := json.Unmarshal(frame[0], &frameType); err != nil {
			continue
		}
		if frameType != "EVENT" || len(frame) < 3 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(frame[2], &ev); err != nil {
			log.Printf("nostr: relay %s: unmarshal event: %v", r.url, err)
			continue
		}

		select {
		case r.events <- ev:
		default:
			// Bounded channel is full; drop the oldest rather than block the
			// relay's read loop indefinitely.
			select {
			case <-r.events:
			default:
			}
			select {
			case r.events <- ev:
			default:
			}
		}
	}
}

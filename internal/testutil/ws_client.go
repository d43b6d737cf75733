package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dom/skillswap/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient creates a new WebSocket test client
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// readPump reads messages from the WebSocket connection
func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				case c.errors <- err:
				}
				return
			}

			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.errors <- err
				continue
			}

			select {
			case c.messages <- &msg:
			case <-c.done:
				return
			}
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		// Send close frame and close connection without artificial delay
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// send writes a message of msgType with payload to the server
func (c *WSClient) send(msgType websocket.MessageType, payload interface{}) {
	c.t.Helper()

	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		c.t.Fatalf("failed to build message: %v", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(gorillaWS.TextMessage, data); err != nil {
		c.t.Fatalf("failed to send message: %v", err)
	}
}

// WatchSession subscribes to updates for a session and waits for the ack
func (c *WSClient) WatchSession(sessionID string) {
	c.t.Helper()
	c.send(websocket.MessageTypeWatchSession, websocket.WatchSessionPayload{SessionID: sessionID})
	c.ExpectMessage(websocket.MessageTypeWatching, 2*time.Second)
}

// UnwatchSession stops updates for a session
func (c *WSClient) UnwatchSession(sessionID string) {
	c.t.Helper()
	c.send(websocket.MessageTypeUnwatchSession, websocket.WatchSessionPayload{SessionID: sessionID})
}

// SendRaw writes an arbitrary message type with payload
func (c *WSClient) SendRaw(msgType websocket.MessageType, payload interface{}) {
	c.t.Helper()
	c.send(msgType, payload)
}

// ExpectMessage waits for a message of the specified type
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
			// Skip other message types
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for %s: %v", msgType, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
		}
	}
}

// ExpectSessionEvent waits for and decodes a SESSION_UPDATED message
func (c *WSClient) ExpectSessionEvent(timeout time.Duration) *websocket.SessionEventPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeSessionUpdated, timeout)

	var payload websocket.SessionEventPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode session event payload: %v", err)
	}

	return &payload
}

// ExpectBalanceEvent waits for and decodes a BALANCE_UPDATED message
func (c *WSClient) ExpectBalanceEvent(timeout time.Duration) *websocket.BalanceEventPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeBalanceUpdated, timeout)

	var payload websocket.BalanceEventPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode balance event payload: %v", err)
	}

	return &payload
}

// ExpectError waits for and decodes an ERROR message
func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeError, timeout)

	var payload websocket.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode error payload: %v", err)
	}

	return &payload
}

// ExpectErrorWithCode waits for an error with a specific code
func (c *WSClient) ExpectErrorWithCode(code string, timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	payload := c.ExpectError(timeout)
	if payload.Code != code {
		c.t.Fatalf("expected error code %s, got %s: %s", code, payload.Code, payload.Message)
	}

	return payload
}

// ExpectNoMessage verifies no messages are received within timeout
func (c *WSClient) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()

	select {
	case msg := <-c.messages:
		if msg != nil {
			c.t.Fatalf("unexpected message received: %s", msg.Type)
		}
	case <-time.After(timeout):
		// Expected - no message received
	}
}

// DrainMessages drains all pending messages from the channel with a timeout.
// It waits for messages to settle, then drains everything currently buffered.
func (c *WSClient) DrainMessages() {
	c.DrainMessagesWithTimeout(100 * time.Millisecond)
}

// DrainMessagesWithTimeout drains messages, waiting up to timeout for the channel to settle.
// This replaces the old sleep+drain pattern with a proper implementation.
func (c *WSClient) DrainMessagesWithTimeout(timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
			// Reset deadline when we receive a message - more might be coming
			deadline = time.After(50 * time.Millisecond)
		case <-deadline:
			// No messages for timeout duration, channel is settled
			return
		case <-c.done:
			return
		}
	}
}

// ExpectAnyMessage waits for any message to arrive and returns it
func (c *WSClient) ExpectAnyMessage(timeout time.Duration) *websocket.Message {
	c.t.Helper()

	select {
	case msg := <-c.messages:
		if msg == nil {
			c.t.Fatal("connection closed while waiting for message")
		}
		return msg
	case err := <-c.errors:
		c.t.Fatalf("error while waiting for message: %v", err)
	case <-time.After(timeout):
		c.t.Fatal("timeout waiting for any message")
	}
	return nil
}

// WaitForMessageCount waits until at least count messages have been received.
// It drains those messages and returns them.
func (c *WSClient) WaitForMessageCount(count int, timeout time.Duration) []*websocket.Message {
	c.t.Helper()

	messages := make([]*websocket.Message, 0, count)
	deadline := time.After(timeout)

	for len(messages) < count {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed after receiving %d/%d messages", len(messages), count)
			}
			messages = append(messages, msg)
		case err := <-c.errors:
			c.t.Fatalf("error after receiving %d/%d messages: %v", len(messages), count, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for messages: got %d/%d", len(messages), count)
		}
	}

	return messages
}

// ExpectSessionEventNamed waits for a SESSION_UPDATED message carrying event
func (c *WSClient) ExpectSessionEventNamed(event string, timeout time.Duration) *websocket.SessionEventPayload {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", event)
			}
			if msg.Type == websocket.MessageTypeSessionUpdated {
				var payload websocket.SessionEventPayload
				if err := json.Unmarshal(msg.Payload, &payload); err != nil {
					c.t.Fatalf("failed to decode session event payload: %v", err)
				}
				if payload.Event == event {
					return &payload
				}
			}
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for %s: %v", event, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for session event %s", event)
		}
	}
}

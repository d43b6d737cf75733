package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

const broadcastBuffer = 256

// Hub tracks connected clients, the sessions each one watches, and fans
// settlement and catalog events out to them.
type Hub struct {
	clients    map[*Client]bool
	watchers   map[uuid.UUID]map[*Client]bool
	byUser     map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	watch      chan *WatchRequest
	unwatch    chan *WatchRequest
	broadcast  chan *delivery
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopped    bool
	mu         sync.RWMutex
}

type WatchRequest struct {
	Client    *Client
	SessionID uuid.UUID
}

type delivery struct {
	sessionID *uuid.UUID
	userID    *uuid.UUID
	data      []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		watchers:   make(map[uuid.UUID]map[*Client]bool),
		byUser:     make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		watch:      make(chan *WatchRequest),
		unwatch:    make(chan *WatchRequest),
		broadcast:  make(chan *delivery, broadcastBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.watchers = make(map[uuid.UUID]map[*Client]bool)
			h.byUser = make(map[uuid.UUID]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.stopped {
				h.clients[client] = true
				addTo(h.byUser, client.userID, client)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			h.mu.Unlock()

		case req := <-h.watch:
			h.mu.Lock()
			if h.clients[req.Client] {
				addTo(h.watchers, req.SessionID, req.Client)
				req.Client.watching[req.SessionID] = true
			}
			h.mu.Unlock()

		case req := <-h.unwatch:
			h.mu.Lock()
			removeFrom(h.watchers, req.SessionID, req.Client)
			delete(req.Client.watching, req.SessionID)
			h.mu.Unlock()

		case d := <-h.broadcast:
			h.mu.Lock()
			var targets map[*Client]bool
			switch {
			case d.sessionID != nil:
				targets = h.watchers[*d.sessionID]
			case d.userID != nil:
				targets = h.byUser[*d.userID]
			}
			for client := range targets {
				if !client.trySend(d.data) {
					// Slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client from every index and closes it. Caller holds h.mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	removeFrom(h.byUser, client.userID, client)
	for sessionID := range client.watching {
		removeFrom(h.watchers, sessionID, client)
	}
	client.Close()
}

// Stop gracefully shuts down the hub and closes every client.
// It blocks until Run has exited.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister safely unregisters a client, handling the case where the hub may be stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Watch(client *Client, sessionID uuid.UUID) {
	select {
	case h.watch <- &WatchRequest{Client: client, SessionID: sessionID}:
	case <-h.done:
	}
}

func (h *Hub) Unwatch(client *Client, sessionID uuid.UUID) {
	select {
	case h.unwatch <- &WatchRequest{Client: client, SessionID: sessionID}:
	case <-h.done:
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WatcherCount reports how many clients watch sessionID.
func (h *Hub) WatcherCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[sessionID])
}

// NotifySession sends event to every client watching sessionID.
func (h *Hub) NotifySession(sessionID uuid.UUID, event string, data any) {
	msg, err := NewMessage(MessageTypeSessionUpdated, SessionEventPayload{
		SessionID: sessionID.String(),
		Event:     event,
		Data:      data,
	})
	if err != nil {
		log.Printf("ERROR [ws] encode session event: %v", err)
		return
	}
	h.enqueue(&delivery{sessionID: &sessionID}, msg)
}

// NotifyUser sends event to every connection opened by userID.
func (h *Hub) NotifyUser(userID uuid.UUID, event string, data any) {
	msg, err := NewMessage(MessageTypeBalanceUpdated, BalanceEventPayload{
		Event: event,
		Data:  data,
	})
	if err != nil {
		log.Printf("ERROR [ws] encode user event: %v", err)
		return
	}
	h.enqueue(&delivery{userID: &userID}, msg)
}

// enqueue never blocks the caller; events are dropped when the hub is
// stopped or backed up.
func (h *Hub) enqueue(d *delivery, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ERROR [ws] marshal message: %v", err)
		return
	}
	d.data = data

	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- d:
	default:
		log.Printf("WARN [ws] broadcast queue full, dropping %s", msg.Type)
	}
}

func addTo(index map[uuid.UUID]map[*Client]bool, key uuid.UUID, client *Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Client]bool)
		index[key] = set
	}
	set[client] = true
}

func removeFrom(index map[uuid.UUID]map[*Client]bool, key uuid.UUID, client *Client) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(index, key)
	}
}

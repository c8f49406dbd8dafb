// Package hub fans focus samples out to websocket subscribers, one hub per room,
// using the channel-based register/unregister/broadcast loop.
package hub

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/andresmejia3/focuswatch/internal/log"
)

// Hub maintains the set of active clients of one room and broadcasts messages to them
type Hub struct {
	room string
	log  *logrus.Entry

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

// New creates a hub for a room. Call Run in a goroutine.
func New(room string) *Hub {
	return &Hub{
		room:       room,
		log:        log.Component("hub").WithField("room", room),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debugf("client connected (%d total)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debugf("client disconnected (%d remaining)", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Broadcast queues raw bytes for every client. Messages are dropped when the queue is full.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Registry lazily creates one running hub per room.
type Registry struct {
	mu   sync.Mutex
	hubs map[string]*Hub
}

func NewRegistry() *Registry {
	return &Registry{hubs: make(map[string]*Hub)}
}

// Room returns the hub of a room, starting it on first use.
func (r *Registry) Room(room string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[room]
	if !ok {
		h = New(room)
		r.hubs[room] = h
		go h.Run()
	}
	return h
}

// Publish broadcasts v to a room only if that room already has a hub.
func (r *Registry) Publish(room string, v any) error {
	r.mu.Lock()
	h, ok := r.hubs[room]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return h.BroadcastJSON(v)
}

// Close stops every hub.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room, h := range r.hubs {
		h.Stop()
		delete(r.hubs, room)
	}
}

package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// MessageType represents the type of a hub payload.
type MessageType string

const (
	MessageTaskCreated           MessageType = "TaskCreated"
	MessageTaskUpdated           MessageType = "TaskUpdated"
	MessageCalendarEventUpserted MessageType = "CalendarEventUpserted"
)

// BroadcastMessage packages a payload for a project-scoped broadcast.
type BroadcastMessage struct {
	ProjectID string
	Payload   []byte
}

// Hub manages active clients and project-scoped broadcasts.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan BroadcastMessage
}

// NewHub builds a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan BroadcastMessage),
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				if client.ProjectID() != message.ProjectID {
					continue
				}
				select {
				case client.Send <- message.Payload:
				default:
					delete(h.clients, client)
					close(client.Send)
				}
			}
		}
	}
}

// Broadcast sends a payload to all clients watching a project.
func (h *Hub) Broadcast(projectID string, payload []byte) {
	h.broadcast <- BroadcastMessage{ProjectID: projectID, Payload: payload}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Client represents a websocket connection.
type Client struct {
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte

	mu        sync.RWMutex
	projectID string
}

// NewClient returns a client ready for registration.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, 256),
	}
}

// ProjectID returns the project the client is watching.
func (c *Client) ProjectID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projectID
}

// SetProjectID updates the project the client is watching.
func (c *Client) SetProjectID(projectID string) {
	c.mu.Lock()
	c.projectID = projectID
	c.mu.Unlock()
}

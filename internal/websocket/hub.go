package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
)

// Message types
const (
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeSubscribe         = "subscribe"
	MessageTypeUnsubscribe       = "unsubscribe"
	MessageTypeSubscribed        = "subscribed"
	MessageTypeUnsubscribed      = "unsubscribed"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Period    string      `json:"period,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LeaderboardUpdate carries the head of a freshly computed board.
type LeaderboardUpdate struct {
	Period     string                    `json:"period"`
	Entries    []domain.LeaderboardEntry `json:"entries"`
	TotalUsers int                       `json:"total_users"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Subscribed clients by period
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *logger.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	period string
}

// NewHub creates a new Hub
func NewHub(log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      log.With("component", "WebSocketHub"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for period, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, period)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.period]; !ok {
				h.clients[req.period] = make(map[*Client]bool)
			}
			h.clients[req.period][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "period", req.period)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.period]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.period)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "period", req.period)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the period's subscribers, or to
// everyone when no period is set.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	targets := h.allClients
	if message.Period != "" {
		targets = h.clients[message.Period]
	}
	for client := range targets {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastLeaderboardUpdate sends the head of a board to its subscribers
func (h *Hub) BroadcastLeaderboardUpdate(period string, entries []domain.LeaderboardEntry, totalUsers int) {
	message := &Message{
		Type:   MessageTypeLeaderboardUpdate,
		Period: period,
		Data: LeaderboardUpdate{
			Period:     period,
			Entries:    entries,
			TotalUsers: totalUsers,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a period's subscribers
func (h *Hub) Subscribe(client *Client, period string) {
	h.subscribe <- &subscriptionRequest{client: client, period: period}
}

// Unsubscribe removes a client from a period's subscribers
func (h *Hub) Unsubscribe(client *Client, period string) {
	h.unsubscribe <- &subscriptionRequest{client: client, period: period}
}

// GetSubscriberCount returns the number of subscribers for a period
func (h *Hub) GetSubscriberCount(period string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[period])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

// Stats returns subscriber counts per period plus the connection total.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := map[string]int{"total_connections": len(h.allClients)}
	for _, p := range domain.Periods {
		out[string(p)] = len(h.clients[string(p)])
	}
	return out
}

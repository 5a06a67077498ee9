package realtime

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/logger"
)

type connectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

// Hub tracks the websocket clients watching each transaction on this instance.
type Hub struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[*Client]struct{}

	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	metrics  connectionMetrics
	logg     *logger.Logger
}

type HubParams struct {
	Config config.RealtimeConfig
	// AllowedOrigins mirrors the CORS list. Empty allows any origin.
	AllowedOrigins []string
	Metrics        connectionMetrics
	Logger         *logger.Logger
}

func NewHub(params HubParams) *Hub {
	h := &Hub{
		rooms:   make(map[uuid.UUID]map[*Client]struct{}),
		cfg:     params.Config,
		metrics: params.Metrics,
		logg:    params.Logger,
	}
	allowed := make(map[string]struct{}, len(params.AllowedOrigins))
	for _, origin := range params.AllowedOrigins {
		allowed[origin] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
	return h
}

// Serve upgrades the request and pumps events for transactionID until the
// peer goes away. The caller has already authorized userID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, transactionID, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := newClient(h, conn, transactionID, userID)
	h.register(client)

	go client.writePump()
	client.readPump()
	return nil
}

// Deliver queues payload for every client of transactionID. Clients whose
// buffer is full are dropped; they catch up through the message list.
func (h *Hub) Deliver(transactionID uuid.UUID, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[transactionID] {
		select {
		case client.send <- payload:
		default:
			h.removeLocked(client)
			if h.logg != nil {
				h.logg.Warn(h.logg.WithTransactionID(context.Background(), transactionID.String()), "dropping slow realtime client")
			}
		}
	}
}

// Connections returns how many clients watch transactionID.
func (h *Hub) Connections(transactionID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[transactionID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for client := range room {
			h.removeLocked(client)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.transactionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.transactionID] = room
	}
	room[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	room, ok := h.rooms[c.transactionID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.transactionID)
	}
	close(c.send)
	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
}

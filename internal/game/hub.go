package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"scratch2x/internal/metrics"
)

// Notifier pushes frames to connected players.
type Notifier interface {
	SendTo(userID string, message interface{})
	Broadcast(message interface{})
}

const CLIENT_QUEUE_SIZE = 64

// Client is one websocket connection. Every frame goes through out and is
// written by a single pump, so a player sees frames in the order sent.
type Client struct {
	conn      *websocket.Conn
	userID    string
	write     func(data []byte) error
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, userID string, write func([]byte) error) *Client {
	if write == nil {
		write = func([]byte) error { return nil }
	}
	c := &Client{
		conn:   conn,
		userID: userID,
		write:  write,
		out:    make(chan []byte, CLIENT_QUEUE_SIZE),
		done:   make(chan struct{}),
	}
	go c.pump()
	return c
}

type directMessage struct {
	userID string
	data   []byte
}

// Hub fans frames out to websocket clients, grouped by player.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	stopChan   chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan []byte, 100),
		direct:     make(chan directMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopChan:   make(chan struct{}),
		log:        logger.Named("ws"),
	}
}

// UseMetrics reports the connection count to m.
func (h *Hub) UseMetrics(m *metrics.Metrics) {
	h.metrics = m
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.stopChan:
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			total := h.countLocked()
			h.mu.Unlock()
			h.metrics.WSConnections(total)
			h.log.Info("client connected", zap.String("user_id", client.userID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.userID]; ok && conns[client] {
				delete(conns, client)
				if len(conns) == 0 {
					delete(h.clients, client.userID)
				}
			}
			client.close()
			total := h.countLocked()
			h.mu.Unlock()
			h.metrics.WSConnections(total)
			h.log.Info("client disconnected", zap.String("user_id", client.userID), zap.Int("total", total))

		case msg := <-h.direct:
			h.mu.RLock()
			for client := range h.clients[msg.userID] {
				client.enqueue(msg.data)
			}
			h.mu.RUnlock()

		case data := <-h.broadcast:
			h.mu.RLock()
			for _, conns := range h.clients {
				for client := range conns {
					client.enqueue(data)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("marshal broadcast", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

// SendTo delivers a frame to every connection the player has open.
func (h *Hub) SendTo(userID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("marshal direct message", zap.Error(err))
		return
	}
	select {
	case h.direct <- directMessage{userID: userID, data: data}:
	default:
		h.log.Warn("direct channel full, dropping message", zap.String("user_id", userID))
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

func (c *Client) pump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := c.write(data); err != nil {
				zap.L().Debug("websocket write failed", zap.String("user_id", c.userID), zap.Error(err))
			}
		}
	}
}

func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.out <- data:
	default:
		zap.L().Warn("client queue full, dropping frame", zap.String("user_id", c.userID))
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Send queues a frame for this client only.
func (c *Client) Send(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	var write func([]byte) error
	if conn != nil {
		write = func(data []byte) error {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			return conn.WriteMessage(websocket.TextMessage, data)
		}
	}
	client := newClient(conn, userID, write)
	h.add(client)
	return client
}

func (h *Hub) add(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopChan:
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopChan:
		client.close()
	}
}

package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains empresa_id -> set of connections and broadcasts import events to them.
// With Redis configured, events go through pub/sub so API instances and workers share one stream.
type Hub struct {
	// empresaID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per empresa
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEmpresaEvent(empresaID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to empresa channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeEmpresa(empresaID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its empresa room. Starts the Redis subscription for the empresa if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EmpresaID] == nil {
		h.rooms[c.EmpresaID] = make(map[string]*Client)
		if h.redisSub != nil {
			empresaID := c.EmpresaID
			cancel, err := h.redisSub.SubscribeEmpresa(empresaID, func(event string, payload []byte) {
				h.Broadcast(empresaID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("redis subscribe failed", zap.String("empresa_id", empresaID.String()), zap.Error(err))
			} else {
				h.subs[empresaID] = cancel
			}
		}
	}
	h.rooms[c.EmpresaID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined", zap.String("client_id", c.ID), zap.String("empresa_id", c.EmpresaID.String()))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.EmpresaID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.EmpresaID)
			if cancel, ok := h.subs[c.EmpresaID]; ok {
				cancel()
				delete(h.subs, c.EmpresaID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left", zap.String("client_id", c.ID), zap.String("empresa_id", c.EmpresaID.String()))
}

// Broadcast sends a message to all clients of an empresa on this instance.
func (h *Hub) Broadcast(empresaID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("unencodable event", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[empresaID] {
		select {
		case c.send <- msg:
		default:
			// slow client; progress events are superseded by the next one
		}
	}
}

// Publish delivers an event to every instance. Without Redis it broadcasts locally.
// With Redis the subscriber callback performs the broadcast, including on this instance.
func (h *Hub) Publish(empresaID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(empresaID, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("unencodable event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.redis.PublishEmpresaEvent(empresaID, event, data); err != nil {
		h.logger.Warn("redis publish failed", zap.String("event", event), zap.Error(err))
	}
}

// Connections returns the number of connected clients of an empresa.
func (h *Hub) Connections(empresaID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[empresaID])
}

// send delivers a message to one client.
func (h *Hub) send(c *Client, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[c.EmpresaID][c.ID]; !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

// internal/web/websocket.go
package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"argus/internal/metrics"
	"argus/internal/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub is the push-channel registry: observers subscribe under a topic and
// receive every payload broadcast to it. It implements
// monitoring.PushChannel.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*WSClient]bool
	metrics *metrics.Collector
}

func NewHub(metricsCollector *metrics.Collector) *Hub {
	return &Hub{
		topics:  make(map[string]map[*WSClient]bool),
		metrics: metricsCollector,
	}
}

// Broadcast sends the payload to every subscriber of a topic. A subscriber
// whose queue cannot accept the message is dropped from the registry; one
// failing subscriber never blocks delivery to the others.
func (h *Hub) Broadcast(topic string, payload interface{}) {
	message := WSMessage{Type: "update", Data: payload}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.topics[topic] {
		select {
		case client.send <- message:
		default:
			logrus.WithField("topic", topic).Warn("Dropping slow websocket subscriber")
			h.dropLocked(topic, client)
		}
	}
}

// ConnectionCount returns the number of subscribers under a topic.
func (h *Hub) ConnectionCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) register(topic string, client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSClient]bool)
	}
	h.topics[topic][client] = true
	h.metrics.RecordWebSocketConnection(1)
}

func (h *Hub) unregister(topic string, client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(topic, client)
}

func (h *Hub) dropLocked(topic string, client *WSClient) {
	if subscribers, exists := h.topics[topic]; exists {
		if subscribers[client] {
			delete(subscribers, client)
			close(client.send)
			h.metrics.RecordWebSocketConnection(-1)
		}
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

type WSClient struct {
	conn  *websocket.Conn
	send  chan WSMessage
	topic string
	hub   *Hub
}

func (s *Server) handleWebSocket(c *gin.Context) {
	topic := c.DefaultQuery("topic", monitoring.DefaultTopic)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade websocket")
		return
	}

	client := &WSClient{
		conn:  conn,
		send:  make(chan WSMessage, 256),
		topic: topic,
		hub:   s.hub,
	}

	s.hub.register(topic, client)

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.unregister(c.topic, c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister(c.topic, c)
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister(c.topic, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

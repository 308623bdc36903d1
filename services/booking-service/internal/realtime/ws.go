package realtime

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	maxFrameSize = 4096
)

// wsClient serializes writes; gorilla connections allow one concurrent
// writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

type subscribeFrame struct {
	BusinessID string `json:"business_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
}

func (f subscribeFrame) key() (Key, bool) {
	if f.BusinessID != "" {
		return Key{BusinessID: f.BusinessID}, true
	}
	if f.ServiceID != "" && f.Date != "" {
		return Key{ServiceID: f.ServiceID, Date: f.Date}, true
	}
	return Key{}, false
}

// Handler upgrades to websocket and reads subscribe frames. A client may
// subscribe to several scopes on one connection; all of them are released
// when the connection drops.
func Handler(hub *Hub, logger *slog.Logger) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Origin policy is enforced by the CORS layer in front of the API.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxFrameSize)

		client := &wsClient{conn: conn}
		var keys []Key
		defer func() {
			for _, k := range keys {
				hub.Unsubscribe(k, client)
			}
		}()

		for {
			var frame subscribeFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			key, ok := frame.key()
			if !ok {
				if err := client.Send(Message{Type: "error", Status: "subscribe frame needs business_id or service_id+date"}); err != nil {
					return
				}
				continue
			}
			hub.Subscribe(key, client)
			keys = append(keys, key)
			if err := client.Send(Message{Type: "subscribed", BusinessID: key.BusinessID, ServiceID: key.ServiceID, Date: key.Date}); err != nil {
				return
			}
		}
	})
}

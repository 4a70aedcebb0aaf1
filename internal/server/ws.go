package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"vaultpricing/internal/subscription"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamPrices pushes the subscription state of ?symbol= to a WebSocket
// client: once on connect, then on every change.
func (h *Handler) StreamPrices(c *gin.Context) {
	symbol := normalize(c.Query("symbol"))
	handle := h.tokens.ForToken(symbol)
	sub := handle.Subscription()
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported token", "symbol": symbol})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "symbol", symbol, "error", err)
		return
	}
	defer conn.Close()

	// A slow client only misses intermediate states; the next one catches up.
	updates := make(chan subscription.State, 8)
	remove := sub.OnChange(func(st subscription.State) {
		select {
		case updates <- st:
		default:
		}
	})
	defer remove()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.writeState(conn, sub.State()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case st := <-updates:
			if err := h.writeState(conn, st); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeState(conn *websocket.Conn, st subscription.State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(st); err != nil {
		h.log.Debug("websocket write failed", "symbol", st.Symbol, "error", err)
		return err
	}
	return nil
}

package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-auction-engine/internal/live"
	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
)

const (
	liveBuffer     = 32
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveHandler streams committed auction events over a websocket.
type LiveHandler struct {
	Engine      Engine
	Broadcaster *live.Broadcaster
	upgrader    websocket.Upgrader
}

// NewLiveHandler accepts connections from any origin; the stream carries
// only public data.
func NewLiveHandler(engine Engine, b *live.Broadcaster) *LiveHandler {
	return &LiveHandler{
		Engine:      engine,
		Broadcaster: b,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

type liveMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Stream handles GET /v1/auctions/:id/live.  The first message is the
// current status snapshot; every later message is a queue.Event for the
// listing.
func (h *LiveHandler) Stream(c echo.Context) error {
	listingID := c.Param("id")
	st, err := h.Engine.GetAuctionStatus(c.Request().Context(), listingID)
	if err != nil {
		return writeError(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // the upgrader already answered
	}
	defer conn.Close()

	sub := h.Broadcaster.Subscribe(listingID, liveBuffer)
	defer h.Broadcaster.Unsubscribe(listingID, sub)

	// drain client frames so pongs and close frames are processed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteJSON(msg)
	}
	if err := write(liveMessage{Type: "status", Data: toStatusView(st)}); err != nil {
		return nil
	}

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := write(eventMessage(ev)); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}

func eventMessage(ev queue.Event) liveMessage {
	return liveMessage{Type: ev.Type, Data: ev}
}

package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"golddust/internal/router"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// eventsHandler streams the router status to WebSocket clients
type eventsHandler struct {
	// serverCtx ends every stream when the server stops
	serverCtx context.Context
	router    *router.Router
	interval  time.Duration
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

func newEventsHandler(serverCtx context.Context, rt *router.Router, interval time.Duration, logger zerolog.Logger) *eventsHandler {
	return &eventsHandler{
		serverCtx: serverCtx,
		router:    rt,
		interval:  interval,
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// ServeHTTP upgrades the connection and pushes a status snapshot every interval
func (h *eventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.serverCtx.Err() != nil {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	logger := h.logger.With().Str("remoteAddr", r.RemoteAddr).Logger()
	logger.Info().Msg("new events connection")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.serverCtx, cancel)
	defer stop()

	go h.readPump(conn, cancel, logger)
	h.writePump(ctx, conn, logger)

	logger.Info().Msg("events connection closed")
}

// readPump discards client messages and cancels ctx once the connection drops
func (h *eventsHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc, logger zerolog.Logger) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("read error")
			}
			return
		}
	}
}

// writePump is the only writer on conn
func (h *eventsHandler) writePump(ctx context.Context, conn *websocket.Conn, logger zerolog.Logger) {
	statusTicker := time.NewTicker(h.interval)
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		statusTicker.Stop()
		pingTicker.Stop()
		conn.Close()
	}()

	if err := h.sendStatus(conn); err != nil {
		logger.Debug().Err(err).Msg("write error")
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-statusTicker.C:
			if err := h.sendStatus(conn); err != nil {
				logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug().Err(err).Msg("ping error")
				return
			}
		}
	}
}

func (h *eventsHandler) sendStatus(conn *websocket.Conn) error {
	snap, err := h.router.Status()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/klairtech/thalassemia-quiz/internal/app"
)

// WSHandler streams leaderboard snapshots to connected clients so the
// leaderboard page updates without manual refresh.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	interval time.Duration
	log      *zap.Logger
}

func NewWSHandler(service *app.QuizService, interval time.Duration, log *zap.Logger) *WSHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: interval,
		log:      log,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades the request and pushes a leaderboard snapshot immediately,
// then on every tick and on client "refresh" messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 8)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	push := func(ctx context.Context) {
		lb, err := h.service.Leaderboard(ctx, limit, nil)
		msg := outboundMessage{Type: "leaderboard", Payload: lb}
		if err != nil {
			h.log.Warn("ws leaderboard snapshot failed", zap.Error(err))
			msg = outboundMessage{Type: "error", Payload: map[string]string{"message": "failed to load leaderboard"}}
		}
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				push(r.Context())
			case <-closeSignals:
				return
			}
		}
	}()

	push(r.Context())

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type == "refresh" {
			push(r.Context())
		}
	}

	close(closeSignals)
	<-tickerDone
	close(send)
	<-writerDone
}

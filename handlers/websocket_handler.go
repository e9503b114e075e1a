package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bracketforge/esports-arena/live"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: ограничить Origin доменом фронтенда перед продакшеном.
		return true
	},
}

type WebSocketHandler struct {
	hub *live.Hub
}

func NewWebSocketHandler(hub *live.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs подписывает клиента на события турнира.
// Подключение: GET /ws/tournaments/{tournamentID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту HTTP-ошибкой.
		slog.Warn("websocket upgrade failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: live.TournamentRoom(tournamentID),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

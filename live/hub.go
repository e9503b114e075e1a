package live

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
)

// Event — сообщение, рассылаемое подписчикам комнаты турнира.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

// Hub держит websocket-подписчиков по комнатам турниров и рассылает им
// события допуска и жизненного цикла. Одна комната на турнир.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if roomClients, ok := h.rooms[client.Room]; ok {
				if _, okClient := roomClients[client]; okClient {
					client.mu.Lock()
					if !client.closed {
						close(client.Send)
						client.closed = true
					}
					client.mu.Unlock()
					delete(roomClients, client)
					if len(roomClients) == 0 {
						delete(h.rooms, client.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// TournamentRoom возвращает ID комнаты для турнира.
func TournamentRoom(tournamentID int) string {
	return "tournament_" + strconv.Itoa(tournamentID)
}

// BroadcastToTournament реализует services.EventBroadcaster.
func (h *Hub) BroadcastToTournament(tournamentID int, eventType string, payload interface{}) {
	roomID := TournamentRoom(tournamentID)
	message, err := json.Marshal(Event{Type: eventType, Payload: payload, RoomID: roomID})
	if err != nil {
		log.Printf("live: error marshalling %s event for room %s: %v", eventType, roomID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.Send <- message:
		default:
			// Канал клиента переполнен, событие для него пропускается.
		}
		client.mu.Unlock()
	}
}

package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/camden-git/imagestore/models"
	"github.com/camden-git/imagestore/services"
	"github.com/gorilla/websocket"
)

const (
	EventMemberImported = "import.member_imported"
	EventMemberSkipped  = "import.member_skipped"
	EventImportFinished = "import.finished"
)

// Event represents a message sent to websocket clients
type Event struct {
	Type      string                 `json:"type"`
	Archive   string                 `json:"archive,omitempty"`
	Album     string                 `json:"album,omitempty"`
	Member    string                 `json:"member,omitempty"`
	Image     string                 `json:"image,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a simple global pubsub for websocket clients
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- encoded:
	default:
		log.Printf("realtime: dropping event, broadcast channel full")
	}
}

// MemberImported implements services.ImportObserver. The feed is public, so
// images landing in private albums are not announced.
func (h *Hub) MemberImported(archive string, album *models.Album, image *models.Image) {
	if album == nil || !album.IsPublic {
		return
	}
	h.Broadcast(Event{
		Type:    EventMemberImported,
		Archive: archive,
		Album:   album.Slug,
		Image:   image.Slug,
		Extra:   map[string]interface{}{"image_id": image.ID, "title": image.Title},
	})
}

// MemberSkipped implements services.ImportObserver
func (h *Hub) MemberSkipped(archive string, member services.SkippedMember) {
	h.Broadcast(Event{
		Type:    EventMemberSkipped,
		Archive: archive,
		Member:  member.Name,
		Reason:  string(member.Reason),
	})
}

// ImportFinished implements services.ImportObserver
func (h *Hub) ImportFinished(archive string, result *services.ImportResult, err error) {
	event := Event{Type: EventImportFinished, Archive: archive, Status: "done"}
	if result != nil {
		if result.Album != nil && result.Album.IsPublic {
			event.Album = result.Album.Slug
		}
		event.Extra = map[string]interface{}{
			"imported": len(result.Images),
			"skipped":  len(result.Skipped),
		}
	}
	if err != nil {
		event.Status = "failed"
		event.Error = err.Error()
	}
	h.Broadcast(event)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers a client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: websocket upgrade error: %v", err)
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	// writer
	go func() {
		for msg := range client.send {
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		client.conn.Close()
	}()

	// reader (just consume pings/close)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister <- client
}

var _ services.ImportObserver = (*Hub)(nil)

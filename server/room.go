package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// hub tracks the websocket connections subscribed to each group's room. The connection sets are the only
// cross-request mutable state the service holds.
type hub struct {
	mu       sync.Mutex
	rooms    map[int64]map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

func newHub(log *logrus.Logger) *hub {
	return &hub{
		rooms: make(map[int64]map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *hub) add(groupID int64, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[groupID] == nil {
		h.rooms[groupID] = make(map[*websocket.Conn]struct{})
	}

	h.rooms[groupID][c] = struct{}{}
}

func (h *hub) remove(groupID int64, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms[groupID], c)

	if len(h.rooms[groupID]) == 0 {
		delete(h.rooms, groupID)
	}
}

// broadcast sends v as JSON to every current subscriber of the group's room. Connections that fail to take the
// write are dropped from the room.
func (h *hub) broadcast(groupID int64, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("cannot marshal room broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[groupID] {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			delete(h.rooms[groupID], c)
		}
	}
}

// closeAll drops every room. Called on shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range h.rooms {
		for c := range room {
			c.Close()
		}
	}

	h.rooms = make(map[int64]map[*websocket.Conn]struct{})
}

// wsHandler upgrades the request and subscribes the connection to the group's room. Text frames received from the
// client are fanned back out to the room, mirroring the broadcast of posted messages.
func (s *Server) wsHandler(rw http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	c, err := s.rooms.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	s.rooms.add(groupID, c)
	s.log.WithFields(logrus.Fields{"groupId": groupID, "remote": r.RemoteAddr}).Info("room subscriber joined")

	defer func() {
		s.rooms.remove(groupID, c)
		c.Close()
	}()

	for {
		kind, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		if kind == websocket.TextMessage {
			s.rooms.broadcast(groupID, json.RawMessage(data))
		}
	}
}

package server

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/corralhq/corral/lib/apierr"
	"github.com/corralhq/corral/lib/store"
)

type messageAddRequest struct {
	GroupID      int64  `json:"groupId"`
	SenderID     int64  `json:"senderId"`
	Content      string `json:"content"`
	Notification string `json:"notification"`
}

// messageAddHandler persists a chat message and fans it out to the group's room.
func (s *Server) messageAddHandler(rw http.ResponseWriter, r *http.Request) {
	var req messageAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(rw, r, apierr.Validation("Invalid JSON body", nil))
		return
	}

	if req.GroupID <= 0 || req.Content == "" {
		s.fail(rw, r, apierr.Validation("groupId and content are required", nil))
		return
	}

	msg, err := s.db.AddMessage(r.Context(), store.Message{
		GroupID:  req.GroupID,
		SenderID: req.SenderID,
		Content:  req.Content,
	})
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	s.rooms.broadcast(req.GroupID, msg)
	s.log.WithFields(logrus.Fields{"event": "NEW_MESSAGE", "groupId": req.GroupID, "senderId": req.SenderID}).Info("message stored")
	s.respond(rw, http.StatusOK, map[string]interface{}{"message": msg})
}

// messageNotifyHandler persists a system notification (a trade confirmation, a join) and fans it out like a
// message.
func (s *Server) messageNotifyHandler(rw http.ResponseWriter, r *http.Request) {
	var req messageAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(rw, r, apierr.Validation("Invalid JSON body", nil))
		return
	}

	if req.GroupID <= 0 || req.Notification == "" {
		s.fail(rw, r, apierr.Validation("groupId and notification are required", nil))
		return
	}

	msg, err := s.db.AddMessage(r.Context(), store.Message{
		GroupID:      req.GroupID,
		SenderID:     req.SenderID,
		Notification: req.Notification,
	})
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	s.rooms.broadcast(req.GroupID, msg)
	s.log.WithFields(logrus.Fields{"event": "NEW_NOTIFICATION", "groupId": req.GroupID, "senderId": req.SenderID}).Info("notification stored")
	s.respond(rw, http.StatusOK, map[string]interface{}{"message": msg})
}

func (s *Server) messageGetHandler(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	msg, err := s.db.GetMessage(r.Context(), id)
	if err != nil {
		s.fail(rw, r, s.storeErr(err, "Message not found"))
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"message": msg})
}

// messagesHandler replies the group's history ordered by send time.
func (s *Server) messagesHandler(rw http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(rw, r, err)
		return
	}

	msgs, err := s.db.GetMessages(r.Context(), id)
	if err != nil {
		s.fail(rw, r, apierr.Internal(err))
		return
	}

	s.respond(rw, http.StatusOK, map[string]interface{}{"messages": msgs})
}

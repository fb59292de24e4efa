package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/ehrlich-b/parley/internal/chat"
	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/history"
)

// maxBodyBytes bounds JSON request bodies and websocket frames.
const maxBodyBytes = 64 * 1024

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type loadSessionRequest struct {
	SessionID string `json:"session_id"`
}

type loadSessionResponse struct {
	Success   bool                  `json:"success"`
	SessionID string                `json:"session_id"`
	Messages  []conversation.Record `json:"messages"`
}

// decodeBody reads a size-limited JSON body into v. On failure it writes
// 413 or 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	key := req.SessionID
	if key == "" {
		key = DefaultSessionKey
	}

	reply, err := s.reply(r, key, req.Message)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, &chat.Reply{
			Response: "An error occurred: " + err.Error(),
			Type:     chat.TypeError,
		})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// reply runs one input through the bot under the session lock. A persist
// failure is logged and the reply still returned.
func (s *Server) reply(r *http.Request, key, message string) (*chat.Reply, error) {
	var (
		reply *chat.Reply
		err   error
	)
	s.withSession(key, func(h *conversation.History) {
		reply, err = s.bot.Handle(r.Context(), h, message)
		if err != nil && reply != nil {
			s.log(r).Warn("session not saved", "session", h.SessionID(), "error", err)
			err = nil
		}
	})
	return reply, err
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeJSON(w, http.StatusOK, map[string][]string{"sessions": {}})
		return
	}
	ids, err := s.backend.List()
	if err != nil {
		s.log(r).Error("list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	var req loadSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if !history.ValidSessionID(req.SessionID) {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	if s.backend == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	mu := s.locks.get(req.SessionID)
	mu.Lock()
	defer mu.Unlock()

	h := s.registry.NewHistory()
	if err := history.LoadInto(s.backend, req.SessionID, h); err != nil {
		s.writeLoadError(w, r, err)
		return
	}
	s.registry.Put(req.SessionID, h)

	writeJSON(w, http.StatusOK, loadSessionResponse{
		Success:   true,
		SessionID: req.SessionID,
		Messages:  h.Recent(LoadedMessages),
	})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.backend == nil || !history.ValidSessionID(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	snap, err := s.backend.Load(id)
	if err != nil {
		s.writeLoadError(w, r, err)
		return
	}
	// Unbounded so the summary covers everything on disk.
	h := conversation.New(conversation.WithMaxHistory(max(len(snap.Records), 1)))
	h.Restore(snap)
	writeJSON(w, http.StatusOK, h.Summary())
}

func (s *Server) writeLoadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case history.IsLoadError(err):
		s.log(r).Warn("stored session unreadable", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log(r).Error("load session", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type wsMessage struct {
	Message string `json:"message"`
}

// handleWSChat answers each text frame {"message": ...} with a Reply frame.
func (s *Server) handleWSChat(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("session_id")
	if key == "" {
		key = DefaultSessionKey
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log(r).Warn("websocket accept", "error", err)
		return
	}
	conn.SetReadLimit(maxBodyBytes)
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.log(r).Debug("websocket read", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var reply *chat.Reply
		var msg wsMessage
		switch err := json.Unmarshal(data, &msg); {
		case err != nil:
			reply = &chat.Reply{Response: "invalid JSON frame", Type: chat.TypeError}
		case msg.Message == "":
			reply = &chat.Reply{Response: "message is required", Type: chat.TypeError}
		default:
			reply, err = s.reply(r, key, msg.Message)
			if err != nil {
				reply = &chat.Reply{Response: "An error occurred: " + err.Error(), Type: chat.TypeError}
			}
		}

		out, err := json.Marshal(reply)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"doc-collab/pkg/db"
	"doc-collab/pkg/room"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512 * 1024
)

// Handlers contains all HTTP and WebSocket handlers.
type Handlers struct {
	rooms  *room.Manager
	store  db.DocumentStore
	logger *zap.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(rooms *room.Manager, store db.DocumentStore, logger *zap.Logger) *Handlers {
	return &Handlers{
		rooms:  rooms,
		store:  store,
		logger: logger,
	}
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the deployment front end
	},
}

// HandleWebSocket upgrades the connection and runs the session until the
// transport closes. Each connection gets a fresh session identity; which
// room it belongs to is decided by join-document frames, not by the URL.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := room.NewClient(uuid.New().String(), conn)
	h.logger.Info("session connected", zap.String("session", client.ID))

	go h.writePump(client)
	h.readPump(client)
}

// readPump reads frames off the socket and routes them to the session's
// room. It owns disconnection: when the read loop exits, the session is
// detached from its room and its presence cleaned up there.
func (h *Handlers) readPump(c *room.Client) {
	defer func() {
		if r := c.Room(); r != nil {
			r.Detach(c, true)
		} else {
			close(c.Send)
		}
		c.Conn.Close()
		h.logger.Info("session disconnected", zap.String("session", c.ID))
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("session", c.ID), zap.Error(err))
			}
			return
		}

		var msg room.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("dropping unparseable frame", zap.String("session", c.ID), zap.Error(err))
			continue
		}
		if err := msg.Validate(); err != nil {
			h.logger.Debug("dropping invalid frame",
				zap.String("session", c.ID), zap.String("kind", msg.Type))
			continue
		}

		if msg.Type == room.KindJoinDocument {
			h.rooms.Join(c, msg.DocID)
			continue
		}

		rm := c.Room()
		if rm == nil || rm.ID != msg.DocID {
			// frames for rooms the session is not in are dropped, no error
			// is surfaced to the client
			continue
		}
		rm.Deliver(c, msg)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (h *Handlers) writePump(c *room.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("websocket write failed", zap.String("session", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// callerID returns the caller-asserted identity for REST requests. It is
// trusted as supplied; verification belongs to the external identity service.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// CreateDocument creates a new document owned by the caller.
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		http.Error(w, "Missing X-User-ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		req.Title = "Untitled Document"
	}

	doc, err := h.store.CreateDocument(userID, req.Title, req.Content)
	if err != nil {
		h.logger.Error("create document failed", zap.Error(err))
		http.Error(w, "Failed to create document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

// ListDocuments returns the documents the caller is a member of.
func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		http.Error(w, "Missing X-User-ID", http.StatusBadRequest)
		return
	}

	docs, err := h.store.ListDocumentsForMember(userID)
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err))
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

// GetDocument retrieves a document if the caller holds any role on it.
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, err := h.store.GetDocument(id)
	if err != nil {
		if errors.Is(err, db.ErrDocumentNotFound) {
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get document failed", zap.String("document", id), zap.Error(err))
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}

	if doc.Roles[callerID(r)] == "" {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// UpdateDocument applies partial updates. Editors may change title and
// content; only admins may reassign roles.
func (h *Handlers) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, err := h.store.GetDocument(id)
	if err != nil {
		if errors.Is(err, db.ErrDocumentNotFound) {
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get document failed", zap.String("document", id), zap.Error(err))
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}

	role := doc.Roles[callerID(r)]
	if role == "" || role == db.RoleViewer {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	var updates db.DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if updates.Roles != nil && role != db.RoleAdmin {
		http.Error(w, "Only admins can change roles", http.StatusForbidden)
		return
	}

	updated, err := h.store.UpdateDocument(id, &updates)
	if err != nil {
		h.logger.Error("update document failed", zap.String("document", id), zap.Error(err))
		http.Error(w, "Failed to update document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DeleteDocument deletes a document; admins only.
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, err := h.store.GetDocument(id)
	if err != nil {
		if errors.Is(err, db.ErrDocumentNotFound) {
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get document failed", zap.String("document", id), zap.Error(err))
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}

	if doc.Roles[callerID(r)] != db.RoleAdmin {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if err := h.store.DeleteDocument(id); err != nil {
		h.logger.Error("delete document failed", zap.String("document", id), zap.Error(err))
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetRoomUsers returns the presence list of an active room.
func (h *Handlers) GetRoomUsers(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	rm, ok := h.rooms.Lookup(roomID)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"room_id": roomID,
		"users":   rm.Snapshot().Users,
	})
}

// GetRoomComments returns the comment log of an active room.
func (h *Handlers) GetRoomComments(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	rm, ok := h.rooms.Lookup(roomID)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"room_id":  roomID,
		"comments": rm.Snapshot().Comments,
	})
}

// GetRoomSuggestions returns the suggestion log of an active room.
func (h *Handlers) GetRoomSuggestions(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	rm, ok := h.rooms.Lookup(roomID)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"room_id":     roomID,
		"suggestions": rm.Snapshot().Suggestions,
	})
}

// GetRoomHighlights returns the highlight log of an active room.
func (h *Handlers) GetRoomHighlights(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	rm, ok := h.rooms.Lookup(roomID)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"room_id":    roomID,
		"highlights": rm.Snapshot().Highlights,
	})
}

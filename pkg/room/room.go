package room

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"doc-collab/pkg/cache"
)

const mirrorTimeout = 3 * time.Second

type eventKind int

const (
	evAttach eventKind = iota
	evDetach
	evFrame
	evQuery
)

// event is one unit of work for a room's goroutine. Everything that touches
// room state flows through the single events channel, so events from one
// connection are processed in the order they arrived.
type event struct {
	kind      eventKind
	client    *Client
	closeSend bool
	// done, when non-nil, is closed once the event has been processed.
	done  chan struct{}
	msg   ClientMessage
	reply chan State
}

// State is a point-in-time copy of a room's membership and annotation logs,
// answered by the room goroutine over a reply channel.
type State struct {
	Users       []UserRecord
	Comments    []Comment
	Suggestions []Suggestion
	Highlights  []Highlight
}

// Room is one collaborative editing session: the set of attached sessions,
// their presence records, and the per-document annotation logs. A single
// goroutine owns all of it; there is no lock because nothing else reads or
// writes the maps and slices below.
type Room struct {
	ID string

	clients     map[string]*Client
	users       map[string]*UserRecord
	comments    []Comment
	suggestions []Suggestion
	highlights  []Highlight

	events    chan event
	mirrorOps chan mirrorOp
	logger    *zap.Logger
	mirror    *cache.PresenceMirror
}

func newRoom(id string, logger *zap.Logger, mirror *cache.PresenceMirror) *Room {
	r := &Room{
		ID:      id,
		clients: make(map[string]*Client),
		users:   make(map[string]*UserRecord),
		events:  make(chan event, 64),
		logger:  logger.With(zap.String("room", id)),
		mirror:  mirror,
	}
	if mirror != nil {
		r.mirrorOps = make(chan mirrorOp, 64)
		go r.mirrorWriter()
	}
	go r.run()
	return r
}

// Attach adds a session to the room's delivery set. Presence is not touched
// until the session sends user-join.
func (r *Room) Attach(c *Client) {
	r.events <- event{kind: evAttach, client: c}
}

// Detach removes a session from the room. closeSend hands the client's send
// channel to the room for closing, which only happens on transport
// disconnect; a room switch keeps the channel open for the next room.
func (r *Room) Detach(c *Client, closeSend bool) {
	r.events <- event{kind: evDetach, client: c, closeSend: closeSend}
}

// detachWait removes a session and blocks until the room has processed the
// removal. Room switches use it so that a client is out of the old room's
// delivery set before it can appear in the next one; without that, the old
// room could still be broadcasting to a send channel the new room has
// already closed on disconnect.
func (r *Room) detachWait(c *Client) {
	done := make(chan struct{})
	r.events <- event{kind: evDetach, client: c, done: done}
	<-done
}

// Deliver hands an inbound frame to the room goroutine.
func (r *Room) Deliver(c *Client, msg ClientMessage) {
	r.events <- event{kind: evFrame, client: c, msg: msg}
}

// Snapshot returns a copy of the room's current state. It blocks until the
// room goroutine answers, so the copy reflects every event delivered before
// the call.
func (r *Room) Snapshot() State {
	reply := make(chan State, 1)
	r.events <- event{kind: evQuery, reply: reply}
	return <-reply
}

// run processes events to completion, one at a time. Rooms are never
// destroyed, so this loop lives for the rest of the process.
func (r *Room) run() {
	for ev := range r.events {
		switch ev.kind {
		case evAttach:
			r.clients[ev.client.ID] = ev.client
			r.logger.Debug("session attached", zap.String("session", ev.client.ID))
		case evDetach:
			r.handleDetach(ev.client, ev.closeSend)
			if ev.done != nil {
				close(ev.done)
			}
		case evFrame:
			r.handleFrame(ev.client, ev.msg)
		case evQuery:
			ev.reply <- r.snapshot()
		}
	}
}

func (r *Room) handleDetach(c *Client, closeSend bool) {
	if _, ok := r.clients[c.ID]; ok {
		delete(r.clients, c.ID)
		if rec, hadPresence := r.users[c.ID]; hadPresence {
			delete(r.users, c.ID)
			r.mirrorRemove(c.ID)
			r.broadcastPresence()
			r.logger.Info("session left", zap.String("session", c.ID), zap.String("user", rec.UserInfo.ID))
		}
	}
	if closeSend {
		close(c.Send)
	}
}

func (r *Room) handleFrame(c *Client, msg ClientMessage) {
	if _, ok := r.clients[c.ID]; !ok {
		return
	}

	switch msg.Type {
	case KindUserJoin:
		if msg.User == nil {
			return
		}
		r.upsertUser(c, *msg.User)
	case KindCursorMove:
		r.moveCursor(c, msg.Cursor)
	case KindSendChanges:
		r.relay(c, msg.Changes)
	case KindAddComment:
		if msg.Comment == nil {
			return
		}
		r.addComment(*msg.Comment)
	case KindResolveComment:
		r.resolveComment(msg.CommentID)
	case KindAddSuggestion:
		if msg.Suggestion == nil {
			return
		}
		r.addSuggestion(*msg.Suggestion)
	case KindAcceptSuggestion:
		r.setSuggestionStatus(msg.SuggestionID, StatusAccepted)
	case KindRejectSuggestion:
		r.setSuggestionStatus(msg.SuggestionID, StatusRejected)
	case KindAddHighlight:
		if msg.Highlight == nil {
			return
		}
		r.addHighlight(*msg.Highlight)
	case KindGetComments:
		r.sendTo(c, commentListFrame{Type: EventComments, Comments: append([]Comment{}, r.comments...), Seq: msg.Seq})
	case KindGetSuggestions:
		r.sendTo(c, suggestionListFrame{Type: EventSuggestions, Suggestions: append([]Suggestion{}, r.suggestions...), Seq: msg.Seq})
	case KindGetHighlights:
		r.sendTo(c, highlightListFrame{Type: EventHighlights, Highlights: append([]Highlight{}, r.highlights...), Seq: msg.Seq})
	}
}

// upsertUser records the caller-asserted identity for the session and
// re-broadcasts the full presence list. A cursor set by an earlier
// cursor-move survives the upsert.
func (r *Room) upsertUser(c *Client, info UserInfo) {
	if rec, ok := r.users[c.ID]; ok {
		rec.UserInfo = info
	} else {
		r.users[c.ID] = &UserRecord{UserInfo: info}
	}
	r.mirrorAdd(c.ID, info.Name)
	r.broadcastPresence()
	r.logger.Info("user joined", zap.String("session", c.ID), zap.String("user", info.ID))
}

// moveCursor is a no-op for sessions that never sent user-join.
func (r *Room) moveCursor(c *Client, cursor json.RawMessage) {
	rec, ok := r.users[c.ID]
	if !ok {
		return
	}
	rec.Cursor = cursor
	r.mirrorAdd(c.ID, rec.Name)
	r.broadcastPresence()
}

// relay forwards opaque edit deltas to every other session in the room. The
// payload is never inspected; merging concurrent edits is the external CRDT
// layer's problem, not ours.
func (r *Room) relay(sender *Client, changes json.RawMessage) {
	data, err := json.Marshal(changesFrame{Type: EventReceiveChanges, Changes: changes})
	if err != nil {
		return
	}
	for id, client := range r.clients {
		if id == sender.ID {
			continue
		}
		r.trySend(client, data)
	}
}

func (r *Room) addComment(c Comment) {
	c.normalize(r.ID)
	r.comments = append(r.comments, c)
	r.broadcast(commentFrame{Type: EventNewComment, Comment: c})
}

// resolveComment flips the resolved flag. An unknown id is a silent no-op:
// no mutation, no broadcast.
func (r *Room) resolveComment(id string) {
	for i := range r.comments {
		if r.comments[i].ID == id {
			r.comments[i].Resolved = true
			r.broadcast(commentResolvedFrame{Type: EventCommentResolved, CommentID: id, Comment: r.comments[i]})
			return
		}
	}
}

func (r *Room) addSuggestion(s Suggestion) {
	s.normalize(r.ID)
	r.suggestions = append(r.suggestions, s)
	r.broadcast(suggestionFrame{Type: EventNewSuggestion, Suggestion: s})
}

// setSuggestionStatus overwrites the current status in place. Concurrent
// accept and reject on the same id resolve last-write-wins.
func (r *Room) setSuggestionStatus(id, status string) {
	for i := range r.suggestions {
		if r.suggestions[i].ID == id {
			r.suggestions[i].Status = status
			evt := EventSuggestionAccepted
			if status == StatusRejected {
				evt = EventSuggestionRejected
			}
			r.broadcast(suggestionStatusFrame{Type: evt, SuggestionID: id, Suggestion: r.suggestions[i]})
			return
		}
	}
}

func (r *Room) addHighlight(h Highlight) {
	h.normalize(r.ID)
	r.highlights = append(r.highlights, h)
	r.broadcast(highlightFrame{Type: EventNewHighlight, Highlight: h})
}

// broadcastPresence sends the full current user list to every attached
// session, including the one that triggered the update. Full snapshots trade
// O(n) frame size for never having an incremental-diff bug; rooms hold tens
// of co-editors at most.
func (r *Room) broadcastPresence() {
	r.broadcast(presenceFrame{Type: EventPresenceUpdate, Users: r.userList()})
}

func (r *Room) broadcast(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("marshal broadcast frame", zap.Error(err))
		return
	}
	for _, client := range r.clients {
		r.trySend(client, data)
	}
}

func (r *Room) sendTo(c *Client, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("marshal reply frame", zap.Error(err))
		return
	}
	r.trySend(c, data)
}

// trySend is at-most-once, best-effort delivery: a slow client's frame is
// dropped rather than stalling the room.
func (r *Room) trySend(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		r.logger.Warn("dropping frame for slow client", zap.String("session", c.ID))
	}
}

func (r *Room) userList() []UserRecord {
	users := make([]UserRecord, 0, len(r.users))
	for _, rec := range r.users {
		users = append(users, *rec)
	}
	return users
}

func (r *Room) snapshot() State {
	return State{
		Users:       r.userList(),
		Comments:    append([]Comment{}, r.comments...),
		Suggestions: append([]Suggestion{}, r.suggestions...),
		Highlights:  append([]Highlight{}, r.highlights...),
	}
}

// The presence mirror is advisory. Each room has one writer goroutine fed by
// a small queue; when the mirror is slow the queue drops ops instead of
// piling up goroutines. A dropped or failed write only costs staleness, and
// the liveness TTL bounds how long it lasts. In-memory presence stays
// authoritative.

type mirrorOp struct {
	remove    bool
	sessionID string
	name      string
}

func (r *Room) mirrorAdd(sessionID, name string) {
	r.enqueueMirror(mirrorOp{sessionID: sessionID, name: name})
}

func (r *Room) mirrorRemove(sessionID string) {
	r.enqueueMirror(mirrorOp{remove: true, sessionID: sessionID})
}

func (r *Room) enqueueMirror(op mirrorOp) {
	if r.mirror == nil {
		return
	}
	select {
	case r.mirrorOps <- op:
	default:
		r.logger.Warn("presence mirror queue full, dropping op", zap.String("session", op.sessionID))
	}
}

func (r *Room) mirrorWriter() {
	for op := range r.mirrorOps {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		var err error
		if op.remove {
			err = r.mirror.RemoveMember(ctx, r.ID, op.sessionID)
		} else {
			err = r.mirror.AddMember(ctx, r.ID, op.sessionID, op.name)
		}
		cancel()
		if err != nil {
			r.logger.Warn("presence mirror write failed", zap.Error(err))
		}
	}
}

package room

import (
	"encoding/json"
	"errors"
)

// Inbound message kinds.
const (
	KindJoinDocument     = "join-document"
	KindUserJoin         = "user-join"
	KindCursorMove       = "cursor-move"
	KindSendChanges      = "send-changes"
	KindAddComment       = "add-comment"
	KindResolveComment   = "resolve-comment"
	KindAddSuggestion    = "add-suggestion"
	KindAcceptSuggestion = "accept-suggestion"
	KindRejectSuggestion = "reject-suggestion"
	KindAddHighlight     = "add-highlight"
	KindGetComments      = "get-comments"
	KindGetSuggestions   = "get-suggestions"
	KindGetHighlights    = "get-highlights"
)

// Outbound event kinds.
const (
	EventPresenceUpdate     = "presence-update"
	EventReceiveChanges     = "receive-changes"
	EventNewComment         = "new-comment"
	EventCommentResolved    = "comment-resolved"
	EventNewSuggestion      = "new-suggestion"
	EventSuggestionAccepted = "suggestion-accepted"
	EventSuggestionRejected = "suggestion-rejected"
	EventNewHighlight       = "new-highlight"
	EventComments           = "comments"
	EventSuggestions        = "suggestions"
	EventHighlights         = "highlights"
)

var ErrInvalidMessage = errors.New("invalid message")

// UserInfo is the caller-asserted identity carried in a user-join payload.
// It is trusted as supplied; verification belongs to the external identity
// service, not to this layer.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Color string `json:"color,omitempty"`
}

// UserRecord is one entry of a room's presence list. Cursor is null until the
// first cursor-move from that session.
type UserRecord struct {
	UserInfo
	Cursor json.RawMessage `json:"cursor"`
}

// ClientMessage is the discriminated inbound frame, tagged by Type. Only the
// fields relevant to the tagged kind are populated; Validate enforces that the
// required ones are present.
type ClientMessage struct {
	Type         string          `json:"type"`
	DocID        string          `json:"docId"`
	User         *UserInfo       `json:"user,omitempty"`
	Cursor       json.RawMessage `json:"cursor,omitempty"`
	Changes      json.RawMessage `json:"changes,omitempty"`
	Comment      *Comment        `json:"comment,omitempty"`
	CommentID    string          `json:"commentId,omitempty"`
	Suggestion   *Suggestion     `json:"suggestion,omitempty"`
	SuggestionID string          `json:"suggestionId,omitempty"`
	Highlight    *Highlight      `json:"highlight,omitempty"`
	// Seq correlates a get-* request with its one-shot reply.
	Seq uint64 `json:"seq,omitempty"`
}

// Validate checks that the fields required by the tagged kind are present.
// Unknown kinds are rejected here so the gateway can drop them uniformly.
func (m *ClientMessage) Validate() error {
	if m.DocID == "" {
		return ErrInvalidMessage
	}
	switch m.Type {
	case KindJoinDocument:
		return nil
	case KindUserJoin:
		if m.User == nil || m.User.ID == "" {
			return ErrInvalidMessage
		}
	case KindCursorMove:
		if len(m.Cursor) == 0 {
			return ErrInvalidMessage
		}
	case KindSendChanges:
		if len(m.Changes) == 0 {
			return ErrInvalidMessage
		}
	case KindAddComment:
		if m.Comment == nil || m.Comment.Content == "" {
			return ErrInvalidMessage
		}
	case KindResolveComment:
		if m.CommentID == "" {
			return ErrInvalidMessage
		}
	case KindAddSuggestion:
		if m.Suggestion == nil || !validSuggestionType(m.Suggestion.Type) {
			return ErrInvalidMessage
		}
	case KindAcceptSuggestion, KindRejectSuggestion:
		if m.SuggestionID == "" {
			return ErrInvalidMessage
		}
	case KindAddHighlight:
		if m.Highlight == nil || m.Highlight.Text == "" {
			return ErrInvalidMessage
		}
	case KindGetComments, KindGetSuggestions, KindGetHighlights:
		return nil
	default:
		return ErrInvalidMessage
	}
	return nil
}

// Outbound frames. Each event carries its own shape; broadcast marshals once
// per event and fans the bytes out.

type presenceFrame struct {
	Type  string       `json:"type"`
	Users []UserRecord `json:"users"`
}

type changesFrame struct {
	Type    string          `json:"type"`
	Changes json.RawMessage `json:"changes"`
}

type commentFrame struct {
	Type    string  `json:"type"`
	Comment Comment `json:"comment"`
}

type commentResolvedFrame struct {
	Type      string  `json:"type"`
	CommentID string  `json:"commentId"`
	Comment   Comment `json:"comment"`
}

type suggestionFrame struct {
	Type       string     `json:"type"`
	Suggestion Suggestion `json:"suggestion"`
}

type suggestionStatusFrame struct {
	Type         string     `json:"type"`
	SuggestionID string     `json:"suggestionId"`
	Suggestion   Suggestion `json:"suggestion"`
}

type highlightFrame struct {
	Type      string    `json:"type"`
	Highlight Highlight `json:"highlight"`
}

type commentListFrame struct {
	Type     string    `json:"type"`
	Comments []Comment `json:"comments"`
	Seq      uint64    `json:"seq,omitempty"`
}

type suggestionListFrame struct {
	Type        string       `json:"type"`
	Suggestions []Suggestion `json:"suggestions"`
	Seq         uint64       `json:"seq,omitempty"`
}

type highlightListFrame struct {
	Type       string      `json:"type"`
	Highlights []Highlight `json:"highlights"`
	Seq        uint64      `json:"seq,omitempty"`
}

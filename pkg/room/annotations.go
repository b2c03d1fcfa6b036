package room

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Suggestion types.
const (
	SuggestionInsert  = "insert"
	SuggestionDelete  = "delete"
	SuggestionReplace = "replace"
)

// Suggestion statuses. Transitions are last-write-wins: a later accept or
// reject simply overwrites the current status, no history is kept.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Comment is an annotation attached to a document position. Created via
// append, mutated only by the resolved flag, never deleted.
type Comment struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId,omitempty"`
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName,omitempty"`
	UserEmail  string          `json:"userEmail,omitempty"`
	Content    string          `json:"content"`
	Position   json.RawMessage `json:"position,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Resolved   bool            `json:"resolved"`
}

// Suggestion is a proposed edit awaiting review.
type Suggestion struct {
	ID              string          `json:"id"`
	DocumentID      string          `json:"documentId,omitempty"`
	UserID          string          `json:"userId"`
	UserName        string          `json:"userName,omitempty"`
	UserEmail       string          `json:"userEmail,omitempty"`
	Type            string          `json:"type"`
	Content         string          `json:"content"`
	OriginalContent string          `json:"originalContent,omitempty"`
	Position        json.RawMessage `json:"position,omitempty"`
	Timestamp       string          `json:"timestamp,omitempty"`
	Status          string          `json:"status"`
}

// Highlight is an append-only annotation, immutable once created.
type Highlight struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId,omitempty"`
	UserID     string          `json:"userId"`
	Text       string          `json:"text"`
	Color      string          `json:"color,omitempty"`
	TextColor  string          `json:"textColor,omitempty"`
	Position   json.RawMessage `json:"position,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
}

func validSuggestionType(t string) bool {
	switch t {
	case SuggestionInsert, SuggestionDelete, SuggestionReplace:
		return true
	}
	return false
}

// normalize fills server-side defaults for caller-omitted fields before an
// annotation is appended to its log.

func (c *Comment) normalize(docID string) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.DocumentID == "" {
		c.DocumentID = docID
	}
	if c.Timestamp == "" {
		c.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	c.Resolved = false
}

func (s *Suggestion) normalize(docID string) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.DocumentID == "" {
		s.DocumentID = docID
	}
	if s.Timestamp == "" {
		s.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	s.Status = StatusPending
}

func (h *Highlight) normalize(docID string) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.DocumentID == "" {
		h.DocumentID = docID
	}
	if h.Timestamp == "" {
		h.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
}

package db

import "time"

// Role values a user can hold on a document.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Document is the durable record the collaboration coordinator treats as an
// external contract. Content is the serialized rich-text payload; the
// coordinator never interprets it.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Roles     map[string]string `json:"roles"`
	Members   []string          `json:"members"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// DocumentStore is the persistence contract for documents.
type DocumentStore interface {
	// CreateDocument creates a document owned by ownerID, who becomes its
	// admin and first member.
	CreateDocument(ownerID, title, content string) (*Document, error)
	GetDocument(id string) (*Document, error)
	// UpdateDocument applies partial updates. Pointer fields in DocumentUpdate
	// distinguish "not provided" (nil) from "set to empty".
	UpdateDocument(id string, updates *DocumentUpdate) (*Document, error)
	DeleteDocument(id string) error
	// ListDocumentsForMember returns the documents userID is a member of,
	// most recently updated first.
	ListDocumentsForMember(userID string) ([]*Document, error)
}

// DocumentUpdate represents partial updates to a document. A non-nil Roles
// map replaces the role assignment wholesale; the members list is derived
// from its keys.
type DocumentUpdate struct {
	Title   *string           `json:"title,omitempty"`
	Content *string           `json:"content,omitempty"`
	Roles   map[string]string `json:"roles,omitempty"`
}

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDocumentNotFound is returned when no document exists for the given id.
var ErrDocumentNotFound = errors.New("document not found")

// PostgresDocumentStore implements DocumentStore using PostgreSQL.
type PostgresDocumentStore struct {
	db *sql.DB
}

// NewPostgresDocumentStore opens a connection pool and ensures the schema.
func NewPostgresDocumentStore(connStr string) (*PostgresDocumentStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresDocumentStore{db: db}

	if err := store.createTable(); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *PostgresDocumentStore) Close() error {
	return s.db.Close()
}

func (s *PostgresDocumentStore) CreateDocument(ownerID, title, content string) (*Document, error) {
	id := uuid.New().String()
	now := time.Now()

	roles := map[string]string{ownerID: RoleAdmin}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, fmt.Errorf("failed to encode roles: %w", err)
	}

	query := `
		INSERT INTO documents (id, title, content, roles, members, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, title, content, roles, members, created_at, updated_at
	`

	return s.scanDocument(s.db.QueryRow(query, id, title, content, rolesJSON, pq.Array([]string{ownerID}), now, now))
}

func (s *PostgresDocumentStore) GetDocument(id string) (*Document, error) {
	query := `
		SELECT id, title, content, roles, members, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	doc, err := s.scanDocument(s.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *PostgresDocumentStore) UpdateDocument(id string, updates *DocumentUpdate) (*Document, error) {
	// Build dynamic SET clauses for provided fields
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argPos))
		args = append(args, *updates.Title)
		argPos++
	}
	if updates.Content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", argPos))
		args = append(args, *updates.Content)
		argPos++
	}
	if updates.Roles != nil {
		rolesJSON, err := json.Marshal(updates.Roles)
		if err != nil {
			return nil, fmt.Errorf("failed to encode roles: %w", err)
		}
		members := make([]string, 0, len(updates.Roles))
		for userID := range updates.Roles {
			members = append(members, userID)
		}
		sets = append(sets, fmt.Sprintf("roles = $%d", argPos))
		args = append(args, rolesJSON)
		argPos++
		sets = append(sets, fmt.Sprintf("members = $%d", argPos))
		args = append(args, pq.Array(members))
		argPos++
	}

	if len(sets) == 0 {
		// Nothing to update; return current document
		return s.GetDocument(id)
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE documents
		SET %s
		WHERE id = $%d
		RETURNING id, title, content, roles, members, created_at, updated_at
	`, strings.Join(sets, ", "), argPos)

	doc, err := s.scanDocument(s.db.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *PostgresDocumentStore) DeleteDocument(id string) error {
	result, err := s.db.Exec(`DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

func (s *PostgresDocumentStore) ListDocumentsForMember(userID string) ([]*Document, error) {
	query := `
		SELECT id, title, content, roles, members, created_at, updated_at
		FROM documents
		WHERE $1 = ANY(members)
		ORDER BY updated_at DESC
	`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var documents []*Document
	for rows.Next() {
		doc, err := s.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return documents, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresDocumentStore) scanDocument(row scanner) (*Document, error) {
	doc := &Document{}
	var rolesJSON []byte

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Content,
		&rolesJSON,
		pq.Array(&doc.Members),
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	if err := json.Unmarshal(rolesJSON, &doc.Roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %w", err)
	}

	return doc, nil
}

// Compile-time check to ensure PostgresDocumentStore implements the
// DocumentStore interface.
var _ DocumentStore = (*PostgresDocumentStore)(nil)

package docstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halvar/vellum/internal/apperr"
	"github.com/halvar/vellum/internal/checksum"
	"github.com/halvar/vellum/internal/models"
)

// Save creates a new document: a fresh identifier and creation
// timestamp are assigned here, never by the caller.
func (db *DB) Save(title, content string) (*models.Document, error) {
	now := time.Now().UTC()
	doc := &models.Document{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Checksum:  checksum.Sum([]byte(content)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.conn.Exec(`
		INSERT INTO documents (id, title, content, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Title, doc.Content, doc.Checksum, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("docstore: save: %w", err)
	}
	return doc, nil
}

// Update replaces a document's content and bumps the modification
// timestamp. When ifMatch is non-empty it must equal the stored
// checksum (optimistic concurrency), otherwise apperr.ErrConflict.
func (db *DB) Update(id, title, content, ifMatch string) (*models.Document, error) {
	existing, err := db.Get(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != existing.Checksum {
		return nil, apperr.ErrConflict
	}
	if title == "" {
		title = existing.Title
	}
	now := time.Now().UTC()
	cs := checksum.Sum([]byte(content))
	_, err = db.conn.Exec(`
		UPDATE documents SET title = ?, content = ?, checksum = ?, updated_at = ?
		WHERE id = ?
	`, title, content, cs, now, id)
	if err != nil {
		return nil, fmt.Errorf("docstore: update: %w", err)
	}
	existing.Title = title
	existing.Content = content
	existing.Checksum = cs
	existing.UpdatedAt = now
	return existing, nil
}

// Get returns a document by id, or apperr.ErrNotFound.
func (db *DB) Get(id string) (*models.Document, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, content, checksum, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	var doc models.Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Checksum, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get: %w", err)
	}
	return &doc, nil
}

// List returns metadata for all documents, most recently updated first.
func (db *DB) List() ([]models.DocumentMetadata, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, checksum, updated_at
		FROM documents ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentMetadata{}
	for rows.Next() {
		var m models.DocumentMetadata
		if err := rows.Scan(&m.ID, &m.Title, &m.Checksum, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a document, or returns apperr.ErrNotFound.
func (db *DB) Delete(id string) error {
	res, err := db.conn.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("docstore: delete: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

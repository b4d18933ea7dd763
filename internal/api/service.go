package api

import (
	"context"

	"github.com/halvar/vellum/internal/compiler"
	"github.com/halvar/vellum/internal/docstore"
	"github.com/halvar/vellum/internal/models"
	"github.com/halvar/vellum/internal/orchestrator"
	"github.com/halvar/vellum/internal/segment"
)

// Service coordinates the compiler, document store, and session manager
// for the API layer.
type Service struct {
	compiler compiler.Service
	store    docstore.Store
	sessions *orchestrator.Manager
	renderer segment.Renderer
}

// NewService creates a new API service.
func NewService(c compiler.Service, store docstore.Store, sessions *orchestrator.Manager) *Service {
	return &Service{
		compiler: c,
		store:    store,
		sessions: sessions,
		renderer: segment.SpanRenderer{},
	}
}

// CompileOnce compiles source synchronously, outside any session.
func (s *Service) CompileOnce(ctx context.Context, source string) ([]byte, error) {
	return s.compiler.Compile(ctx, source)
}

// SegmentSource runs the math segmenter and assembles the preview.
func (s *Service) SegmentSource(source string) ([]segment.Segment, string) {
	return segment.Split(source), segment.Preview(source, s.renderer)
}

// CreateDocument stores a new document.
func (s *Service) CreateDocument(title, content string) (*models.Document, error) {
	return s.store.Save(title, content)
}

// GetDocument returns a stored document.
func (s *Service) GetDocument(id string) (*models.Document, error) {
	return s.store.Get(id)
}

// UpdateDocument updates a document with optimistic concurrency.
func (s *Service) UpdateDocument(id, title, content, ifMatch string) (*models.Document, error) {
	return s.store.Update(id, title, content, ifMatch)
}

// ListDocuments returns all document metadata.
func (s *Service) ListDocuments() ([]models.DocumentMetadata, error) {
	return s.store.List()
}

// DeleteDocument removes a document.
func (s *Service) DeleteDocument(id string) error {
	return s.store.Delete(id)
}

// OpenSession starts a compile session, optionally bound to a document.
// When bound, the stored content becomes the session's first edit so
// the preview converges without waiting for user input.
func (s *Service) OpenSession(docID string) (string, orchestrator.State, error) {
	if docID != "" {
		doc, err := s.store.Get(docID)
		if err != nil {
			return "", orchestrator.State{}, err
		}
		id, o := s.sessions.Open(docID)
		_ = o.Edit(doc.Content)
		return id, o.State(), nil
	}
	id, o := s.sessions.Open("")
	return id, o.State(), nil
}

// Session returns a live session by id.
func (s *Service) Session(id string) (*orchestrator.Orchestrator, error) {
	return s.sessions.Get(id)
}

// CloseSession tears down a session.
func (s *Service) CloseSession(id string) error {
	return s.sessions.Close(id)
}

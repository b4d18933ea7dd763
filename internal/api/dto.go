package api

import (
	"github.com/halvar/vellum/internal/orchestrator"
	"github.com/halvar/vellum/internal/segment"
)

// CompileRequest is the request body for the one-shot compile endpoint.
type CompileRequest struct {
	Content string `json:"content"`
}

// CompileResponse carries the compiled artifact, base64-encoded.
type CompileResponse struct {
	Artifact string `json:"artifact"`
}

// SegmentRequest is the request body for the inline preview endpoint.
type SegmentRequest struct {
	Content string `json:"content"`
}

// SegmentResponse carries the ordered text/math partition and the
// assembled preview markup.
type SegmentResponse struct {
	Segments []segment.Segment `json:"segments"`
	Preview  string            `json:"preview"`
}

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateDocumentRequest is the request body for updating a document.
type UpdateDocumentRequest struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// OpenSessionRequest opens a live compile session, optionally bound to
// a stored document.
type OpenSessionRequest struct {
	DocumentID string `json:"document_id,omitempty"`
}

// EditRequest feeds a full source snapshot into a session.
type EditRequest struct {
	Content string `json:"content"`
}

// SessionResponse describes a session and its current state.
type SessionResponse struct {
	SessionID string             `json:"session_id"`
	State     orchestrator.State `json:"state"`
}

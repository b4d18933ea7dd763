package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/halvar/vellum/internal/apperr"
	"github.com/halvar/vellum/internal/compiler"
)

const maxBodyBytes = 10 << 20 // 10 MB source cap

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// compileStatus maps a compile failure kind to an HTTP status.
// Source problems are the client's fault; a missing or broken toolchain
// is the deployment's.
func compileStatus(kind compiler.Kind) int {
	if kind == compiler.ProcessLaunchFailure {
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}

// Compile handles POST /compile: one-shot compilation outside any session.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	// Reject empty content before the external tool is ever invoked.
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	artifact, err := h.svc.CompileOnce(r.Context(), req.Content)
	if err != nil {
		ce := compiler.AsError(err)
		msg := ce.Diagnostic
		if msg == "" {
			msg = ce.Error()
		}
		slog.Warn("compile failed",
			slog.String("kind", string(ce.Kind)), slog.String("error", ce.Error()))
		writeJSON(w, compileStatus(ce.Kind), errorBody(msg))
		return
	}
	writeJSON(w, http.StatusOK, CompileResponse{
		Artifact: base64.StdEncoding.EncodeToString(artifact),
	})
}

// Segment handles POST /segment: the compiler-free inline preview path.
func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	segments, preview := h.svc.SegmentSource(req.Content)
	writeJSON(w, http.StatusOK, SegmentResponse{Segments: segments, Preview: preview})
}

// ListDocuments handles GET /documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments()
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// CreateDocument handles POST /documents.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	doc, err := h.svc.CreateDocument(req.Title, req.Content)
	if err != nil {
		slog.Error("create document failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// GetDocument handles GET /documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.svc.GetDocument(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get document failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpdateDocument handles PUT /documents/{id} with optimistic concurrency.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id := chi.URLParam(r, "id")

	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	doc, err := h.svc.UpdateDocument(id, req.Title, req.Content, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update document failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteDocument(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenSession handles POST /sessions.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	// An empty or absent body opens an unbound scratch session.
	var req OpenSessionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	id, state, err := h.svc.OpenSession(req.DocumentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("document not found"))
		} else {
			slog.Error("open session failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: id, State: state})
}

// SessionState handles GET /sessions/{id}.
func (h *Handler) SessionState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.svc.Session(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: o.State()})
}

// SessionEdit handles POST /sessions/{id}/edits.
func (h *Handler) SessionEdit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id := chi.URLParam(r, "id")
	o, err := h.svc.Session(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := o.Edit(req.Content); err != nil {
		writeJSON(w, http.StatusGone, errorBody("session closed"))
		return
	}
	writeJSON(w, http.StatusAccepted, SessionResponse{SessionID: id, State: o.State()})
}

// SessionArtifact handles GET /sessions/{id}/artifact: serves the live
// compiled document.
func (h *Handler) SessionArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.svc.Session(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	live := o.Artifacts().Live()
	if live == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not yet compiled"))
		return
	}
	data := live.Bytes()
	if data == nil {
		// Released between lookup and read.
		writeJSON(w, http.StatusNotFound, errorBody("not yet compiled"))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SessionArtifactByID handles GET /sessions/{id}/artifacts/{artifactID}:
// serves a specific handle, such as the one named by the last result.
// Released handles are gone, not cached.
func (h *Handler) SessionArtifactByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.svc.Session(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	handle, ok := o.Artifacts().Get(chi.URLParam(r, "artifactID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("artifact not found"))
		return
	}
	data := handle.Bytes()
	if data == nil {
		writeJSON(w, http.StatusNotFound, errorBody("artifact not found"))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CloseSession handles DELETE /sessions/{id}.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.CloseSession(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

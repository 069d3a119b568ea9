package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/fingerprint"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/streaming"
)

// maxUploadBytes caps a multipart statement upload.
const maxUploadBytes = 100 << 20

// FileResult is the per-file outcome of an import session.
type FileResult struct {
	FileName   string `json:"file_name"`
	Format     string `json:"format,omitempty"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
}

// ImportSession tracks one upload while it is being processed and after it
// finishes, so clients can poll instead of (or in addition to) streaming.
type ImportSession struct {
	ID              string       `json:"id"`
	AccountID       string       `json:"account_id"`
	Status          string       `json:"status"` // processing, completed, error
	FileCount       int          `json:"file_count"`
	Files           []FileResult `json:"files"`
	TotalAccepted   int          `json:"total_accepted"`
	TotalDuplicates int          `json:"total_duplicates"`
	Error           string       `json:"error,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}

type uploadedFile struct {
	name    string
	content []byte
}

// UploadHandler handles statement uploads and the per-session SSE stream.
type UploadHandler struct {
	store    store.Store
	pipeline *ingest.Pipeline
	hub      *streaming.Hub

	mu       sync.RWMutex
	sessions map[string]*ImportSession
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(s store.Store, pipeline *ingest.Pipeline, hub *streaming.Hub) *UploadHandler {
	return &UploadHandler{
		store:    s,
		pipeline: pipeline,
		hub:      hub,
		sessions: make(map[string]*ImportSession),
	}
}

// StartImport handles POST /api/imports. It reads the multipart upload,
// registers a session, and processes the files in the background. Progress
// is observable on GET /api/imports/{id}/events and GET /api/imports/{id}.
func (h *UploadHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}

	accountID := r.FormValue("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	if _, err := h.store.GetAccount(r.Context(), accountID); err != nil {
		storeError(w, err, "load account")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	// Read file contents before responding; the request body is gone once
	// the handler returns.
	files := make([]uploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to open %s: %v", fh.Filename, err))
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s: %v", fh.Filename, err))
			return
		}
		files = append(files, uploadedFile{name: fh.Filename, content: content})
	}

	session := &ImportSession{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Status:    "processing",
		FileCount: len(files),
		Files:     []FileResult{},
		CreatedAt: time.Now().UTC(),
	}
	h.mu.Lock()
	h.sessions[session.ID] = session
	h.mu.Unlock()

	go h.process(session.ID, accountID, files)

	writeJSON(w, http.StatusCreated, map[string]string{"session_id": session.ID})
}

// GetImport handles GET /api/imports/{id}
func (h *UploadHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	session, ok := h.sessions[r.PathValue("id")]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	writeJSON(w, http.StatusOK, session)
}

func (h *UploadHandler) process(sessionID, accountID string, files []uploadedFile) {
	ctx := context.Background()

	hashes, err := h.store.RecentImportHashes(ctx, accountID, store.DefaultHashWindow)
	if err != nil {
		log.Printf("ERROR: failed to load import hashes for account %s: %v", accountID, err)
		h.finishWithError(sessionID, "failed to load duplicate detection window")
		return
	}
	existing := fingerprint.NewSet(hashes)

	for i, file := range files {
		h.hub.Broadcast(sessionID, streaming.Event{
			Type: streaming.EventTypeProgress,
			Data: streaming.ProgressEvent{
				FileName:   file.name,
				Processed:  i,
				Total:      len(files),
				Percentage: float64(i) / float64(len(files)) * 100,
			},
		})

		result := h.importFile(ctx, accountID, file, existing)
		h.recordFile(sessionID, result)

		h.hub.Broadcast(sessionID, streaming.Event{
			Type: streaming.EventTypeFile,
			Data: streaming.FileEvent{
				SessionID:  sessionID,
				FileName:   result.FileName,
				Format:     result.Format,
				Accepted:   result.Accepted,
				Duplicates: result.Duplicates,
				Error:      result.Error,
			},
		})
	}

	h.mu.Lock()
	session := h.sessions[sessionID]
	now := time.Now().UTC()
	session.Status = "completed"
	session.CompletedAt = &now
	accepted, duplicates := session.TotalAccepted, session.TotalDuplicates
	h.mu.Unlock()

	h.hub.Broadcast(sessionID, streaming.Event{
		Type: streaming.EventTypeComplete,
		Data: map[string]interface{}{
			"status":     "completed",
			"accepted":   accepted,
			"duplicates": duplicates,
		},
	})
}

// importFile runs one file through the pipeline and persists the accepted
// transactions. Failures are per-file; they never abort the session.
func (h *UploadHandler) importFile(ctx context.Context, accountID string, file uploadedFile, existing fingerprint.Set) FileResult {
	result := FileResult{FileName: file.name}

	kind := ingest.DetectKind(file.name, file.content)
	imported, err := h.pipeline.Import(file.content, kind, accountID, existing)
	if err != nil {
		log.Printf("WARN: import of %s failed: %v", file.name, err)
		result.Error = err.Error()
		return result
	}

	written, err := h.store.InsertTransactions(ctx, imported.Accepted)
	if err != nil {
		log.Printf("ERROR: failed to persist transactions from %s: %v", file.name, err)
		result.Error = "failed to persist transactions"
		return result
	}

	// Rows the storage layer skipped were duplicates the hash window missed.
	result.Format = string(imported.Format)
	result.Accepted = written
	result.Duplicates = imported.DuplicateCount + (len(imported.Accepted) - written)
	return result
}

func (h *UploadHandler) recordFile(sessionID string, result FileResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session := h.sessions[sessionID]
	session.Files = append(session.Files, result)
	session.TotalAccepted += result.Accepted
	session.TotalDuplicates += result.Duplicates
}

func (h *UploadHandler) finishWithError(sessionID, message string) {
	h.mu.Lock()
	session := h.sessions[sessionID]
	now := time.Now().UTC()
	session.Status = "error"
	session.Error = message
	session.CompletedAt = &now
	h.mu.Unlock()

	h.hub.Broadcast(sessionID, streaming.Event{
		Type: streaming.EventTypeError,
		Data: streaming.ErrorEvent{Message: message},
	})
}

// StreamEvents handles GET /api/imports/{id}/events as a server-sent event
// stream. The stream ends when the session broadcasts complete or error, or
// when the client disconnects.
func (h *UploadHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	h.mu.RLock()
	_, known := h.sessions[sessionID]
	h.mu.RUnlock()
	if !known {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := h.hub.Subscribe(r.Context(), sessionID)
	defer h.hub.Unsubscribe(sessionID, client)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-client.Events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: failed to marshal SSE event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()

			if event.Type == streaming.EventTypeComplete || event.Type == streaming.EventTypeError {
				return
			}
		}
	}
}

package chathistory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// maxImportBytes bounds the request body accepted by the import endpoint.
const maxImportBytes = 32 * 1024 * 1024

// httpHandler serves the store over HTTP.
type httpHandler struct {
	store          *Store
	allowedOrigins []string
}

// NewHTTPHandler returns an HTTP handler exposing the store. The
// library itself has no network dependency; this is the delivery
// surface embedders mount.
func NewHTTPHandler(store *Store, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	h := &httpHandler{store: store, allowedOrigins: allowedOrigins}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)

	r.Route("/threads", func(r chi.Router) {
		r.Get("/", h.handleListThreads)
		r.Post("/", h.handleCreateThread)
		r.Get("/current", h.handleGetCurrent)
		r.Put("/current", h.handleSetCurrent)
		r.Get("/{threadID}", h.handleGetThread)
		r.Patch("/{threadID}", h.handleRenameThread)
		r.Delete("/{threadID}", h.handleDeleteThread)
		r.Post("/{threadID}/messages", h.handleAppendMessage)
	})

	r.Get("/export", h.handleExport)
	r.Post("/import", h.handleImport)

	return r
}

// ThreadSummary is the list-view representation of a thread.
type ThreadSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

// RenameRequest is the body of PATCH /threads/{id}.
type RenameRequest struct {
	Title string `json:"title"`
}

// AppendMessageRequest is the body of POST /threads/{id}/messages.
type AppendMessageRequest struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// CurrentThreadResponse is the body of GET /threads/current.
type CurrentThreadResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the HTTP error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *httpHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads := h.store.Threads()
	summaries := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		summaries = append(summaries, ThreadSummary{
			ID:           t.ID,
			Title:        t.Title,
			MessageCount: len(t.Messages),
			CreatedAt:    t.CreatedAt,
			UpdatedAt:    t.UpdatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *httpHandler) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	t := h.store.CreateThread()
	h.writeJSON(w, http.StatusCreated, t)
}

func (h *httpHandler) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "threadID")
	t, ok := h.store.Thread(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "thread not found", ErrCodeNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *httpHandler) handleRenameThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "threadID")
	if _, ok := h.store.Thread(id); !ok {
		h.writeError(w, http.StatusNotFound, "thread not found", ErrCodeNotFound)
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", ErrCodeValidation)
		return
	}

	h.store.RenameThread(id, req.Title)

	// Empty titles are silently ignored by the store; report the
	// thread as it stands either way.
	t, _ := h.store.Thread(id)
	h.writeJSON(w, http.StatusOK, t)
}

func (h *httpHandler) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	h.store.DeleteThread(chi.URLParam(r, "threadID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "threadID")
	if _, ok := h.store.Thread(id); !ok {
		h.writeError(w, http.StatusNotFound, "thread not found", ErrCodeNotFound)
		return
	}

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", ErrCodeValidation)
		return
	}
	if req.Role != RoleUser && req.Role != RoleAssistant {
		h.writeError(w, http.StatusBadRequest, "role must be user or assistant", ErrCodeValidation)
		return
	}

	h.store.AppendMessage(id, Message{
		Role:    req.Role,
		Content: req.Content,
		Images:  req.Images,
	})

	t, _ := h.store.Thread(id)
	h.writeJSON(w, http.StatusOK, t)
}

func (h *httpHandler) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, CurrentThreadResponse{ID: h.store.CurrentID()})
}

func (h *httpHandler) handleSetCurrent(w http.ResponseWriter, r *http.Request) {
	var req CurrentThreadResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", ErrCodeValidation)
		return
	}
	if _, ok := h.store.Thread(req.ID); !ok {
		h.writeError(w, http.StatusNotFound, "thread not found", ErrCodeNotFound)
		return
	}

	h.store.SetCurrent(req.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Export()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "export failed", ErrCodeStorage)
		return
	}

	filename := fmt.Sprintf("chat-export-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *httpHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reading request body failed", ErrCodeValidation)
		return
	}

	if err := h.store.Import(data); err != nil {
		if errors.Is(err, ErrInvalidImport) {
			h.writeError(w, http.StatusBadRequest, "import data must be a JSON array of threads", ErrCodeValidation)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "import failed", ErrCodeStorage)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"threads": len(h.store.Threads())})
}

// writeJSON writes a JSON response.
func (h *httpHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (h *httpHandler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

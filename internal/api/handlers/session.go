package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/complexlabs/docchat/internal/api"
	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/pagination"
	"github.com/go-chi/chi/v5"
)

type SessionManager interface {
	Create(ctx context.Context, title string) (*domain.Session, error)
	List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.Session], error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

type SessionHandler struct {
	svc SessionManager
}

func NewSessionHandler(svc SessionManager) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type RenameSessionRequest struct {
	NewTitle string `json:"new_title"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

func sessionToResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.svc.Create(r.Context(), req.Title)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sessionToResponse(session))
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Cursor   string            `json:"cursor,omitempty"`
	HasMore  bool              `json:"has_more"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	page, err := h.svc.List(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SessionListResponse{
		Sessions: make([]SessionResponse, 0, len(page.Items)),
		Cursor:   page.Cursor,
		HasMore:  page.HasMore,
	}
	for _, s := range page.Items {
		resp.Sessions = append(resp.Sessions, sessionToResponse(s))
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RenameSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Rename(r.Context(), id, req.NewTitle); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "title": req.NewTitle})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"deleted": id})
}

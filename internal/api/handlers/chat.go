package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/complexlabs/docchat/internal/api"
	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/service"
	"github.com/go-chi/chi/v5"
)

type AnswerService interface {
	Ask(ctx context.Context, sessionID, question string) (*service.AnswerResult, error)
}

type HistoryService interface {
	History(ctx context.Context, sessionID string) ([]service.HistoryEntry, error)
}

type ChatHandler struct {
	answers AnswerService
	history HistoryService
}

func NewChatHandler(answers AnswerService, history HistoryService) *ChatHandler {
	return &ChatHandler{answers: answers, history: history}
}

type AskRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type TurnResponse struct {
	ID        string `json:"id"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	ReasonID  string `json:"reason_id"`
	CreatedAt string `json:"created_at"`
}

type AskResponse struct {
	Answer   string                `json:"answer"`
	Reason   []domain.ContextChunk `json:"reason"`
	ReasonID string                `json:"reason_id"`
	History  []TurnResponse        `json:"history"`
}

func turnToResponse(t *domain.ChatTurn) TurnResponse {
	return TurnResponse{
		ID:        t.ID,
		Query:     t.Query,
		Answer:    t.Answer,
		ReasonID:  t.ReasonID,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.answers.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AskResponse{
		Answer:   result.Answer,
		Reason:   result.Reason,
		ReasonID: result.ReasonID,
		History:  make([]TurnResponse, 0, len(result.History)),
	}
	for _, turn := range result.History {
		resp.History = append(resp.History, turnToResponse(turn))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	entries, err := h.history.History(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entries)
}

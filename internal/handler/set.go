package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/service"
)

// SetHandler serves the /set routes. Access decisions live in the service;
// handlers only pass along who is asking.
type SetHandler struct {
	sets   *service.SetService
	logger *slog.Logger
}

func NewSetHandler(sets *service.SetService, logger *slog.Logger) *SetHandler {
	return &SetHandler{sets: sets, logger: logger}
}

type setRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Public      bool         `json:"public"`
	Cards       []model.Card `json:"cards"`
}

func (req setRequest) input() service.SetInput {
	return service.SetInput{
		Title:       req.Title,
		Description: req.Description,
		Public:      req.Public,
		Cards:       req.Cards,
	}
}

// HandleList returns the sets visible to the requester.
//
// HTTP: GET /set?user=<username>&title=<substring>
func (h *SetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sets, err := h.sets.List(r.Context(), auth.UsernameFromContext(r.Context()), service.SetQuery{
		User:  q.Get("user"),
		Title: q.Get("title"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (h *SetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	set, err := h.sets.Get(r.Context(), auth.UsernameFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// HandleCreate answers 200 with the stored set, cards included.
func (h *SetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	requester := auth.UsernameFromContext(r.Context())

	var req setRequest
	if err := decodeJSON(w, r, &req); err != nil && requester != "" {
		writeError(w, err)
		return
	}

	set, err := h.sets.Create(r.Context(), requester, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *SetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := decodeJSON(w, r, &req); err != nil {
		// Reported after the existence and access checks.
		req = setRequest{}
	}

	set, err := h.sets.Update(r.Context(), auth.UsernameFromContext(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// HandleDelete answers 204 whether or not the set still existed.
func (h *SetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.sets.Delete(r.Context(), auth.UsernameFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/service"
)

// UserHandler serves the /user routes:
//
//	POST   /user/register          → create an account, log in
//	POST   /user/login             → log in
//	GET    /user/logout            → clear the session cookie
//	GET    /user/verify            → who am I
//	GET    /user/savedSets         → ids of saved sets
//	POST   /user/saveSet/{setId}   → save a readable set
//	PUT    /user/{username}        → replace username and password
//	PATCH  /user/{username}        → change username and/or password
//	DELETE /user/{username}        → delete the account and its sets
type UserHandler struct {
	users         *service.UserService
	secureCookies bool
	logger        *slog.Logger
}

// NewUserHandler creates a UserHandler. secureCookies marks the session
// cookie Secure, which browsers only send over HTTPS.
func NewUserHandler(users *service.UserService, secureCookies bool, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, secureCookies: secureCookies, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by every route that issues or confirms a session.
type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w, res)
}

func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w, res)
}

// HandleLogout only drops the cookie. The token itself stays valid until
// the next credential change reissues it.
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	w.WriteHeader(http.StatusCreated)
}

// HandleVerify echoes the session back and refreshes the cookie.
func (h *UserHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return
	}
	h.writeSession(w, &service.AuthResult{User: user, Token: user.Token})
}

func (h *UserHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	h.handleUpdate(w, r, h.users.Replace)
}

func (h *UserHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.handleUpdate(w, r, h.users.Patch)
}

type updateFunc func(ctx context.Context, requester, target, newUsername, password string) (*service.AuthResult, error)

// handleUpdate reports a malformed body only to the account owner, so
// anonymous and foreign callers still get 401 and 403.
func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request, update updateFunc) {
	requester := auth.UsernameFromContext(r.Context())
	target := chi.URLParam(r, "username")

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil && requester != "" && requester == target {
		writeError(w, err)
		return
	}

	res, err := update(r.Context(), requester, target, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w, res)
}

func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	requester := auth.UsernameFromContext(r.Context())
	if err := h.users.Delete(r.Context(), requester, chi.URLParam(r, "username")); err != nil {
		writeError(w, err)
		return
	}
	h.clearCookie(w)
	w.WriteHeader(http.StatusCreated)
}

// Auth: RequireAuth
func (h *UserHandler) HandleSavedSets(w http.ResponseWriter, r *http.Request) {
	ids, err := h.users.SavedSets(r.Context(), auth.UsernameFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// HandleSaveSet responds with the updated public profile.
// Auth: RequireAuth
func (h *UserHandler) HandleSaveSet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.SaveSet(r.Context(), auth.UsernameFromContext(r.Context()), chi.URLParam(r, "setId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *UserHandler) writeSession(w http.ResponseWriter, res *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, TokenResponse{Token: res.Token, Username: res.User.Username})
}

func (h *UserHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/evotar/apiserver/internal/services"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// Authenticator checks credentials.
type Authenticator interface {
	Login(ctx context.Context, studentID, password string) (session.Session, error)
	Logout(ctx context.Context, sess session.Session)
}

// Registrar creates self-registered voter accounts.
type Registrar interface {
	Register(ctx context.Context, in services.UserInput) (types.User, error)
}

// AuthHandler provides cookie session endpoints.
type AuthHandler struct {
	auth    Authenticator
	users   Registrar
	codec   *session.Codec
	limiter *RateLimiter
}

func NewAuthHandler(auth Authenticator, users Registrar, codec *session.Codec, limiter *RateLimiter) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, codec: codec, limiter: limiter}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	if h.limiter != nil {
		r.With(h.limiter.Middleware).Post("/login", h.Login)
	} else {
		r.Post("/login", h.Login)
	}
	r.Post("/logout", h.Logout)
	r.Post("/register", h.Register)
	r.Get("/session", h.Session)
}

type LoginRequest struct {
	StudentID string `json:"student_id"`
	Password  string `json:"password"`
}

// Login verifies credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.auth.Login(r.Context(), req.StudentID, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "Failed to log in")
		return
	}
	if !h.setSession(w, r, sess) {
		return
	}
	writeOK(w, http.StatusOK, envelope{"role": sess.Role, "session": sess})
}

// Logout clears the session cookie. It succeeds for anonymous callers too.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), session.FromContext(r.Context()))
	http.SetCookie(w, h.codec.ClearCookie())
	writeOK(w, http.StatusOK, nil)
}

// Register creates a voter account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.UserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to register")
		return
	}
	sess := session.ForUser(user, "")
	if !h.setSession(w, r, sess) {
		return
	}
	writeOK(w, http.StatusCreated, envelope{"user": user, "session": sess})
}

// Session returns the caller's session; anonymous callers get isLoggedIn false.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, envelope{"session": session.FromContext(r.Context())})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, r *http.Request, sess session.Session) bool {
	token, err := h.codec.Encode(sess)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create session")
		return false
	}
	http.SetCookie(w, h.codec.Cookie(token))
	return true
}

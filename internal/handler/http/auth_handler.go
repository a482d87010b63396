package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/auth"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/user"
)

type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=6"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	// Login is a username or an email address.
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CookieSettings struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

type AuthHandler struct {
	users    user.Service
	sessions auth.SessionService
	cookie   CookieSettings
	validate *validator.Validate
}

func NewAuthHandler(users user.Service, sessions auth.SessionService, cookie CookieSettings) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, cookie: cookie, validate: validator.New()}
}

// RegisterRoutes mounts the public routes. Me goes through RegisterPrivateRoutes.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/register", h.handleRegister)
	router.Post("/login", h.handleLogin)
	router.Post("/logout", h.handleLogout)
}

func (h *AuthHandler) RegisterPrivateRoutes(router chi.Router) {
	router.Get("/me", h.handleMe)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, s auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    s.Token.String(),
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	created, err := h.users.Register(r.Context(), user.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to register user")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.validate, &req, false) {
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to log in")
		return
	}

	s, err := h.sessions.Start(r.Context(), u.ID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to start session")
		return
	}

	h.setSessionCookie(w, s)
	log.Info().Int64("user_id", u.ID).Msg("user logged in")
	respondWithJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookie.Name); err == nil && cookie.Value != "" {
		if err := h.sessions.End(r.Context(), cookie.Value); err != nil {
			log.Error().Err(err).Msg("Failed to end session")
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), principal(r).UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load account")
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

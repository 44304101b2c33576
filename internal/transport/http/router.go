package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/identity"
)

// Accounts registers and authenticates players.
type Accounts interface {
	Register(ctx context.Context, req identity.RegisterRequest) (domain.User, error)
	Login(ctx context.Context, email, password string) (domain.User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	TokenParser
	Issue(user domain.User) (string, error)
}

// CategoryProvider lists question categories.
type CategoryProvider interface {
	Categories(ctx context.Context) ([]domain.Category, error)
}

// ResultHistory lists recorded results.
type ResultHistory interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.RecordedResult, error)
}

type RouterConfig struct {
	WS         *WSHandler
	Accounts   Accounts
	Tokens     TokenIssuer
	Categories CategoryProvider
	// Fallback is served when Categories fails.
	Fallback []domain.Category
	Results  ResultHistory
	Log      logrus.FieldLogger
}

const defaultResultsLimit = 20

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	h := &apiHandler{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})
	r.Get("/categories", h.categories)
	r.Get("/ws", cfg.WS.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(requireUser(cfg.Tokens))
		r.Get("/results", h.results)
	})
	return r
}

type apiHandler struct {
	cfg RouterConfig
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

func (h *apiHandler) register(w http.ResponseWriter, r *http.Request) {
	var req identity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.cfg.Accounts.Register(r.Context(), req)
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrPasswordMismatch),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.cfg.Log.WithError(err).Error("register failed")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	h.respondWithToken(w, http.StatusCreated, user)
}

func (h *apiHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.cfg.Accounts.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		h.cfg.Log.WithError(err).Error("login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	h.respondWithToken(w, http.StatusOK, user)
}

func (h *apiHandler) respondWithToken(w http.ResponseWriter, status int, user domain.User) {
	token, err := h.cfg.Tokens.Issue(user)
	if err != nil {
		h.cfg.Log.WithError(err).Error("token issue failed")
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, status, authResponse{User: user, Token: token})
}

func (h *apiHandler) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.cfg.Categories.Categories(r.Context())
	if err != nil {
		h.cfg.Log.WithError(err).Warn("category list unavailable, serving fallback")
		categories = h.cfg.Fallback
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *apiHandler) results(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	results, err := h.cfg.Results.Recent(r.Context(), userIDFrom(r.Context()), limit)
	if err != nil {
		h.cfg.Log.WithError(err).Error("list results failed")
		writeError(w, http.StatusInternalServerError, "could not load results")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

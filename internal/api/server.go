package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marquee/internal/auth"
	"marquee/internal/config"
	"marquee/internal/game"
	"marquee/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID   string
	Email    string
	Username string
}

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	auth *auth.Manager
	game *game.Service
	hub  *session.Hub
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, tokens *auth.Manager, gameSvc *game.Service, hub *session.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		auth: tokens,
		game: gameSvc,
		hub:  hub,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/studio", s.handleStudio)
			r.Post("/studio/auto-advance", s.handleAutoAdvance)
			r.Post("/studio/advance-week", s.handleAdvanceWeek)

			r.Post("/films", s.handleCreateFilm)
			r.Get("/films", s.handleFilmsList)
			r.Get("/films/{id}", s.handleFilmDetail)

			r.Get("/leaderboard", s.handleLeaderboard)

			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions", s.handleOpenSessions)
			r.Post("/sessions/join", s.handleJoinSession)
			r.Get("/sessions/{id}", s.handleSessionState)
			r.Post("/sessions/{id}/ready", s.handleSessionReady)
			r.Post("/sessions/{id}/start", s.handleSessionStart)
			r.Post("/sessions/{id}/advance", s.handleSessionAdvance)
			r.Post("/sessions/{id}/end", s.handleSessionEnd)
		})
	})

	// Sockets authenticate via ?token= because browsers cannot set headers
	// on a WebSocket handshake.
	r.Get("/ws/sessions/{id}", s.handleSessionSocket)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := s.game.CreateAccount(r.Context(), in.Email, strings.TrimSpace(in.Username), hash)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, err := s.auth.Issue(auth.User{ID: userID, Email: in.Email})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"access_token": token,
		"user_id":      userID,
		"email":        in.Email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	userID, passwordHash, username, err := s.game.Credentials(r.Context(), in.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !auth.CheckPassword(passwordHash, in.Password) {
		writeError(w, http.StatusUnauthorized, game.ErrInvalidCredentials.Error())
		return
	}
	if err := s.game.EnsureStudio(r.Context(), userID, username); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	token, err := s.auth.Issue(auth.User{ID: userID, Email: in.Email})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user_id":      userID,
		"email":        in.Email,
		"username":     username,
	})
}

func (s *Server) handleStudio(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Dashboard(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAutoAdvance(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.SetAutoAdvance(r.Context(), user.UserID, in.Enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAdvanceWeek(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	report, err := s.game.AdvanceStudioWeek(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCreateFilm(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Title           string `json:"title"`
		Genre           string `json:"genre"`
		MarketingBudget int64  `json:"marketing_budget"`
		ProductionSpend int64  `json:"production_spend"`
		ReleaseWeek     int    `json:"release_week"`
		ReleaseYear     int    `json:"release_year"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	film, err := s.game.CreateFilm(r.Context(), game.CreateFilmInput{
		UserID:          user.UserID,
		Title:           in.Title,
		Genre:           in.Genre,
		MarketingBudget: in.MarketingBudget,
		ProductionSpend: in.ProductionSpend,
		ReleaseWeek:     in.ReleaseWeek,
		ReleaseYear:     in.ReleaseYear,
		IdempotencyKey:  idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, film)
}

func (s *Server) handleFilmsList(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	films, err := s.game.ListFilms(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"films": films})
}

func (s *Server) handleFilmDetail(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	filmID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid film id")
		return
	}
	film, err := s.game.FilmDetail(r.Context(), user.UserID, filmID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, film)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	rows, err := s.game.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		MaxPlayers int `json:"max_players"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.CreateSession(r.Context(), user.UserID, in.MaxPlayers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleOpenSessions(w http.ResponseWriter, r *http.Request) {
	views, err := s.game.ListOpenSessions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.JoinSession(r.Context(), in.Code, user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.SessionState(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, ok := view.Member(user.UserID); !ok {
		writeError(w, http.StatusForbidden, game.ErrNotSessionMember.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSessionReady(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		Ready bool `json:"ready"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.SetReady(r.Context(), sessionID, user.UserID, in.Ready)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p, ok := view.Member(user.UserID); ok {
		s.hub.AnnounceReady(r.Context(), sessionID, p.UserID, p.Username, in.Ready)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.StartSession(r.Context(), sessionID, user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.AnnounceStart(sessionID, view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSessionAdvance(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.game.AdvanceSessionWeek(r.Context(), sessionID, user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.AnnounceWeek(r.Context(), sessionID, report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.EndSession(r.Context(), sessionID, user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.AnnounceEnd(sessionID, view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	user, err := s.auth.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	username, err := s.game.Username(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.ServeWs(w, r, sessionID, user.ID, username)
}

func sessionIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid session id")
	}
	return id, nil
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrDuplicateIdempotency), errors.Is(err, game.ErrAdvanceInFlight),
		errors.Is(err, game.ErrStudioInSession):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, game.ErrInsufficientFunds), errors.Is(err, game.ErrInvalidGenre),
		errors.Is(err, game.ErrPlayersNotReady), errors.Is(err, game.ErrSessionNotJoinable),
		errors.Is(err, game.ErrSessionNotActive), errors.Is(err, game.ErrSessionFull):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrUnauthorized), errors.Is(err, game.ErrNotHost),
		errors.Is(err, game.ErrNotSessionMember):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrFilmNotFound), errors.Is(err, game.ErrStudioNotFound),
		errors.Is(err, game.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

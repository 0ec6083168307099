package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"marquee/internal/boxoffice"
)

// Service owns all game-state reads and writes. The box-office engine is
// injected so a seeded instance can drive deterministic tests.
type Service struct {
	db     *pgxpool.Pool
	log    *slog.Logger
	engine *boxoffice.Engine

	mu   sync.Mutex
	rand *mathrand.Rand

	advances advanceGuard
}

func NewService(db *pgxpool.Pool, engine *boxoffice.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		log:    logger,
		engine: engine,
		rand:   mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		advances: advanceGuard{
			inflight: make(map[string]guardEntry),
		},
	}
}

func (s *Service) nextIntn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

func (s *Service) newSessionCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sessionCode(s.rand)
}

// CreateAccount registers a user and founds their studio.
func (s *Service) CreateAccount(ctx context.Context, email, username, passwordHash string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if username == "" {
		username = usernameFromEmail(email)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `
		INSERT INTO users.accounts (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING user_id
	`, email, username, passwordHash).Scan(&userID)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrEmailTaken
		}
		return "", err
	}
	if err := ensureStudioTx(ctx, tx, userID, username); err != nil {
		return "", err
	}
	return userID, tx.Commit(ctx)
}

// Credentials looks up the stored password hash for a login attempt.
func (s *Service) Credentials(ctx context.Context, email string) (userID, passwordHash, username string, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT user_id, password_hash, username
		FROM users.accounts
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&userID, &passwordHash, &username)
	if err == pgx.ErrNoRows {
		return "", "", "", ErrInvalidCredentials
	}
	return userID, passwordHash, username, err
}

// Username returns the display name for a user id.
func (s *Service) Username(ctx context.Context, userID string) (string, error) {
	var username string
	err := s.db.QueryRow(ctx, `
		SELECT username FROM users.accounts WHERE user_id = $1
	`, userID).Scan(&username)
	if err == pgx.ErrNoRows {
		return "", ErrUnauthorized
	}
	return username, err
}

// EnsureStudio founds a studio for the user if they do not have one yet.
// Called on login so accounts created before a season reset still get one.
func (s *Service) EnsureStudio(ctx context.Context, userID, username string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := ensureStudioTx(ctx, tx, userID, username); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func ensureStudioTx(ctx context.Context, tx pgx.Tx, userID, username string) error {
	name := strings.TrimSpace(username)
	if name == "" {
		name = "Untitled"
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO game.studios (owner_user_id, name, budget, current_week, current_year)
		VALUES ($1, $2, $3, 1, 1)
		ON CONFLICT (owner_user_id) DO NOTHING
	`, userID, name+" Pictures", StartingBudget)
	return err
}

func (s *Service) studioIDByOwner(ctx context.Context, userID string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		SELECT id FROM game.studios WHERE owner_user_id = $1
	`, userID).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, ErrStudioNotFound
	}
	return id, err
}

// Dashboard returns the caller's studio with its full film slate.
func (s *Service) Dashboard(ctx context.Context, userID string) (StudioView, error) {
	var out StudioView
	err := s.db.QueryRow(ctx, `
		SELECT id, name, budget, current_week, current_year, auto_advance
		FROM game.studios
		WHERE owner_user_id = $1
	`, userID).Scan(&out.ID, &out.Name, &out.Budget, &out.CurrentWeek, &out.CurrentYear, &out.AutoAdvance)
	if err == pgx.ErrNoRows {
		return out, ErrStudioNotFound
	}
	if err != nil {
		return out, err
	}
	films, err := s.filmsByStudio(ctx, out.ID)
	if err != nil {
		return out, err
	}
	out.Films = films
	return out, nil
}

// SetAutoAdvance toggles worker-driven weekly ticks for a solo studio.
func (s *Service) SetAutoAdvance(ctx context.Context, userID string, enabled bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE game.studios SET auto_advance = $1, updated_at = now()
		WHERE owner_user_id = $2
	`, enabled, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStudioNotFound
	}
	return nil
}

// CreateFilm greenlights a production: debits the studio budget for the
// production spend plus marketing commitment and enters development.
func (s *Service) CreateFilm(ctx context.Context, in CreateFilmInput) (FilmView, error) {
	var out FilmView
	genre := strings.ToLower(strings.TrimSpace(in.Genre))
	if err := ValidateGenre(genre); err != nil {
		return out, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return out, fmt.Errorf("film title is required")
	}
	spend := in.ProductionSpend
	if spend <= 0 {
		spend = DefaultProductionSpend
	}
	marketing := in.MarketingBudget
	if marketing < 0 {
		marketing = 0
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	var studioID int64
	var budget int64
	var week, year int
	err = tx.QueryRow(ctx, `
		SELECT id, budget, current_week, current_year
		FROM game.studios
		WHERE owner_user_id = $1
		FOR UPDATE
	`, in.UserID).Scan(&studioID, &budget, &week, &year)
	if err == pgx.ErrNoRows {
		return out, ErrStudioNotFound
	}
	if err != nil {
		return out, err
	}

	cost := spend + marketing
	if budget < cost {
		return out, ErrInsufficientFunds
	}

	releaseWeek, releaseYear := in.ReleaseWeek, in.ReleaseYear
	if releaseWeek < 1 || releaseWeek > 52 || releaseYear < 1 {
		releaseWeek, releaseYear = addWeeks(week, year, PreReleaseWeeks()+1)
	}

	quality := s.rollQuality(spend)
	err = tx.QueryRow(ctx, `
		INSERT INTO game.films (
			studio_id, title, genre, phase, phase_weeks_left,
			quality_score, marketing_budget, production_spend,
			release_week, release_year, idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
		RETURNING id, created_at
	`, studioID, title, genre, PhaseDevelopment, phaseWeeks[PhaseDevelopment],
		quality, marketing, spend, releaseWeek, releaseYear, in.IdempotencyKey,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return out, ErrDuplicateIdempotency
		}
		return out, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE game.studios SET budget = budget - $1, updated_at = now() WHERE id = $2
	`, cost, studioID); err != nil {
		return out, err
	}
	if err := appendLedgerTx(ctx, tx, studioID, "greenlight", -cost, map[string]any{
		"film_id":          out.ID,
		"production_spend": spend,
		"marketing":        marketing,
	}); err != nil {
		return out, err
	}

	out.StudioID = studioID
	out.Title = title
	out.Genre = genre
	out.Phase = PhaseDevelopment
	out.PhaseWeeksLeft = phaseWeeks[PhaseDevelopment]
	out.QualityScore = quality
	out.MarketingBudget = marketing
	out.ReleaseWeek = releaseWeek
	out.ReleaseYear = releaseYear
	return out, tx.Commit(ctx)
}

// rollQuality decides a film's latent quality at greenlight: production spend
// buys a higher floor, the rest is the dice.
func (s *Service) rollQuality(productionSpend int64) int {
	base := 35
	spendBonus := int(productionSpend / 2_500_000)
	if spendBonus > 30 {
		spendBonus = 30
	}
	quality := base + spendBonus + s.nextIntn(31)
	if quality > 100 {
		quality = 100
	}
	return quality
}

// ListFilms returns the caller's slate, newest first.
func (s *Service) ListFilms(ctx context.Context, userID string) ([]FilmView, error) {
	studioID, err := s.studioIDByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.filmsByStudio(ctx, studioID)
}

// FilmDetail returns one film, owner-checked.
func (s *Service) FilmDetail(ctx context.Context, userID string, filmID int64) (FilmView, error) {
	studioID, err := s.studioIDByOwner(ctx, userID)
	if err != nil {
		return FilmView{}, err
	}
	rows, err := s.db.Query(ctx, filmSelect+` WHERE f.id = $1 AND f.studio_id = $2`, filmID, studioID)
	if err != nil {
		return FilmView{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return FilmView{}, err
		}
		return FilmView{}, ErrFilmNotFound
	}
	return scanFilm(rows)
}

const filmSelect = `
	SELECT f.id, f.studio_id, f.title, f.genre, f.phase, f.phase_weeks_left,
	       f.quality_score, f.critic_score, f.audience_score,
	       f.marketing_budget, f.release_week, f.release_year, f.theater_count,
	       f.weekly_box_office, f.total_box_office,
	       f.weekly_by_territory, f.total_by_territory, f.created_at
	FROM game.films f`

func (s *Service) filmsByStudio(ctx context.Context, studioID int64) ([]FilmView, error) {
	rows, err := s.db.Query(ctx, filmSelect+` WHERE f.studio_id = $1 ORDER BY f.id DESC`, studioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FilmView
	for rows.Next() {
		f, err := scanFilm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFilm(rows pgx.Rows) (FilmView, error) {
	var f FilmView
	err := rows.Scan(
		&f.ID, &f.StudioID, &f.Title, &f.Genre, &f.Phase, &f.PhaseWeeksLeft,
		&f.QualityScore, &f.CriticScore, &f.AudienceScore,
		&f.MarketingBudget, &f.ReleaseWeek, &f.ReleaseYear, &f.TheaterCount,
		&f.WeeklyBoxOffice, &f.TotalBoxOffice,
		&f.WeeklyByTerritory, &f.TotalByTerritory, &f.CreatedAt,
	)
	return f, err
}

// Leaderboard ranks studios by cumulative worldwide gross.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT ROW_NUMBER() OVER (ORDER BY COALESCE(SUM(f.total_box_office), 0) DESC, st.id) AS rank,
		       st.name, a.username, COALESCE(SUM(f.total_box_office), 0) AS gross
		FROM game.studios st
		JOIN users.accounts a ON a.user_id = st.owner_user_id
		LEFT JOIN game.films f ON f.studio_id = st.id
		GROUP BY st.id, st.name, a.username
		ORDER BY gross DESC, st.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.Rank, &r.StudioName, &r.Username, &r.TotalGross); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func appendLedgerTx(ctx context.Context, tx pgx.Tx, studioID int64, action string, amount int64, metadata map[string]any) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO game.studio_ledger (studio_id, action, amount, metadata)
		VALUES ($1, $2, $3, $4)
	`, studioID, action, amount, metadata)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func usernameFromEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "player"
	}
	return email[:at]
}

package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"marquee/internal/boxoffice"
)

// advanceGuard enforces at most one in-flight orchestration pass per key
// (studio or session). Entries older than the TTL are treated as abandoned
// and stolen, so a crashed pass cannot wedge a session forever. Each acquire
// carries a token; release only clears the holder's own entry, so a stolen
// pass that later finishes cannot free the thief's slot.
type advanceGuard struct {
	mu       sync.Mutex
	nextTok  uint64
	inflight map[string]guardEntry
}

type guardEntry struct {
	started time.Time
	token   uint64
}

func (g *advanceGuard) begin(key string, ttl time.Duration) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.inflight[key]; ok && time.Since(e.started) < ttl {
		return 0, ErrAdvanceInFlight
	}
	g.nextTok++
	g.inflight[key] = guardEntry{started: time.Now(), token: g.nextTok}
	return g.nextTok, nil
}

func (g *advanceGuard) end(key string, token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.inflight[key]; ok && e.token == token {
		delete(g.inflight, key)
	}
}

// filmState is the orchestrator's working copy of one film row.
type filmState struct {
	ID              int64
	StudioID        int64
	Title           string
	Genre           string
	Phase           string
	PhaseWeeksLeft  int
	QualityScore    int
	CriticScore     int
	AudienceScore   int
	MarketingBudget int64
	ReleaseWeek     int
	ReleaseYear     int
	TheaterCount    int
	Weekly          []int64
	Total           int64
	ShareMap        boxoffice.ShareMap
	WeeklyByTerr    []map[string]int64
	TotalByTerr     map[string]int64
	WeeksBelowFloor int
}

// applyWeek appends one week's result to the film's running records. Strictly
// append-only: weekly arrays grow by exactly one entry and the totals are the
// sums of their arrays.
func applyWeek(f *filmState, revenue int64, split map[string]int64) {
	f.Weekly = append(f.Weekly, revenue)
	f.Total += revenue
	f.WeeklyByTerr = append(f.WeeklyByTerr, split)
	if f.TotalByTerr == nil {
		f.TotalByTerr = make(map[string]int64, len(split))
	}
	for code, amt := range split {
		f.TotalByTerr[code] += amt
	}
}

// tickFilm advances one film by one simulated week. Returns the tick result
// plus any studio credit the week produced. An error means the film record is
// malformed and the film should be skipped, not that the pass should abort.
func (s *Service) tickFilm(f *filmState, week, year int) (FilmTickResult, int64, error) {
	res := FilmTickResult{FilmID: f.ID, Title: f.Title}

	switch f.Phase {
	case PhaseArchived:
		res.Phase = PhaseArchived
		return res, 0, nil

	case PhaseDevelopment, PhasePreProduction, PhaseProduction, PhasePostProduction:
		f.PhaseWeeksLeft--
		if f.PhaseWeeksLeft <= 0 {
			f.PhaseWeeksLeft = 0
			next, ok := nextPhase(f.Phase)
			if !ok {
				return res, 0, fmt.Errorf("film %d: phase %q has no successor", f.ID, f.Phase)
			}
			if next == PhaseReleased {
				// Hold in post_production until the scheduled release week.
				if calendarReached(week, year, f.ReleaseWeek, f.ReleaseYear) {
					s.openFilm(f)
					return s.tickReleased(f, week)
				}
			} else {
				f.Phase = next
				f.PhaseWeeksLeft = phaseWeeks[next]
			}
		}
		res.Phase = f.Phase
		return res, 0, nil

	case PhaseReleased:
		return s.tickReleased(f, week)

	default:
		return res, 0, fmt.Errorf("film %d: unknown phase %q", f.ID, f.Phase)
	}
}

// openFilm moves a film into release: reception scores lock in and the
// opening screen count is set. The territory share map is generated on the
// first released tick and persisted for the whole run.
func (s *Service) openFilm(f *filmState) {
	f.Phase = PhaseReleased
	f.TheaterCount = OpeningTheaterCount
	f.CriticScore = clampScore(f.QualityScore + s.nextIntn(21) - 10)
	f.AudienceScore = clampScore(f.QualityScore + s.nextIntn(31) - 15)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (s *Service) tickReleased(f *filmState, week int) (FilmTickResult, int64, error) {
	res := FilmTickResult{FilmID: f.ID, Title: f.Title, Phase: PhaseReleased}
	if err := ValidateGenre(f.Genre); err != nil {
		return res, 0, fmt.Errorf("film %d: %w", f.ID, err)
	}

	weeksIn := len(f.Weekly)
	var prev int64
	if weeksIn > 0 {
		prev = f.Weekly[weeksIn-1]
	}
	revenue := s.engine.WeeklyRevenue(boxoffice.FilmWeek{
		Genre:           f.Genre,
		QualityScore:    f.QualityScore,
		MarketingBudget: f.MarketingBudget,
		WeeksInRelease:  weeksIn,
		PrevWeekRevenue: prev,
	}, week)

	if f.ShareMap == nil {
		f.ShareMap = s.engine.GenerateShareMap()
	}
	split := s.engine.Split(revenue, f.ShareMap)
	applyWeek(f, revenue, split)
	f.TheaterCount = theaterCountFor(len(f.Weekly) - 1)

	if revenue < MinTheatricalWeekly {
		f.WeeksBelowFloor++
	} else {
		f.WeeksBelowFloor = 0
	}

	credit := revenue
	if f.WeeksBelowFloor >= ArchiveWeeksBelowFloor {
		f.Phase = PhaseArchived
		res.Phase = PhaseArchived
		res.Archived = true
		credit += streamingPayout(f.Total)
	}

	res.WeekRevenue = revenue
	res.ByTerritory = split
	return res, credit, nil
}

// AdvanceStudioWeek runs one orchestration pass for a solo studio: bump the
// studio clock, tick every film, credit the box-office take. At most one pass
// per studio runs at a time; the whole pass commits or none of it does.
func (s *Service) AdvanceStudioWeek(ctx context.Context, userID string) (AdvanceReport, error) {
	var report AdvanceReport
	studioID, err := s.studioIDByOwner(ctx, userID)
	if err != nil {
		return report, err
	}

	key := fmt.Sprintf("studio:%d", studioID)
	tok, err := s.advances.begin(key, advanceLockTTL)
	if err != nil {
		return report, err
	}
	defer s.advances.end(key, tok)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return report, err
	}
	defer tx.Rollback(ctx)

	// A studio seated in an active session advances with the session only,
	// otherwise its films would take extra weekly entries and fall out of
	// step with the other members.
	var seated bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM game.session_players sp
			JOIN game.sessions se ON se.id = sp.session_id
			WHERE sp.studio_id = $1 AND se.status = 'active'
		)
	`, studioID).Scan(&seated)
	if err != nil {
		return report, err
	}
	if seated {
		return report, ErrStudioInSession
	}

	var week, year int
	err = tx.QueryRow(ctx, `
		SELECT current_week, current_year FROM game.studios WHERE id = $1 FOR UPDATE
	`, studioID).Scan(&week, &year)
	if err != nil {
		return report, err
	}
	week, year = advanceCalendar(week, year)
	if _, err := tx.Exec(ctx, `
		UPDATE game.studios SET current_week = $1, current_year = $2, updated_at = now() WHERE id = $3
	`, week, year, studioID); err != nil {
		return report, err
	}

	report, err = s.advanceStudioFilmsTx(ctx, tx, studioID, week, year)
	if err != nil {
		return report, err
	}
	return report, tx.Commit(ctx)
}

// advanceStudioFilmsTx ticks every non-archived film of one studio inside an
// open transaction. A malformed film is skipped and logged; the rest of the
// pass proceeds.
func (s *Service) advanceStudioFilmsTx(ctx context.Context, tx pgx.Tx, studioID int64, week, year int) (AdvanceReport, error) {
	report := AdvanceReport{Week: week, Year: year}

	films, err := loadFilmsForUpdate(ctx, tx, studioID)
	if err != nil {
		return report, err
	}

	var totalCredit int64
	for i := range films {
		f := &films[i]
		res, credit, err := s.tickFilm(f, week, year)
		if err != nil {
			s.log.Error("film tick skipped", "film_id", f.ID, "studio_id", studioID, "err", err)
			report.Skipped = append(report.Skipped, f.ID)
			continue
		}
		if err := persistFilmTx(ctx, tx, f); err != nil {
			return report, err
		}
		if f.Phase == PhaseReleased || res.Archived {
			candidate := AwardCandidate{
				FilmID:         f.ID,
				CriticScore:    f.CriticScore,
				AudienceScore:  f.AudienceScore,
				TotalBoxOffice: f.Total,
			}
			if err := recordAwardWatchTx(ctx, tx, candidate, week, year); err != nil {
				return report, err
			}
			report.AwardWatch = append(report.AwardWatch, candidate)
		}
		totalCredit += credit
		report.Films = append(report.Films, res)
	}

	if totalCredit > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE game.studios SET budget = budget + $1, updated_at = now() WHERE id = $2
		`, totalCredit, studioID); err != nil {
			return report, err
		}
		if err := appendLedgerTx(ctx, tx, studioID, "weekly_gross", totalCredit, map[string]any{
			"week": week, "year": year,
		}); err != nil {
			return report, err
		}
		report.Credits = append(report.Credits, BudgetCredit{
			StudioID: studioID,
			Amount:   totalCredit,
			Reason:   "weekly_gross",
		})
	}
	return report, nil
}

func loadFilmsForUpdate(ctx context.Context, tx pgx.Tx, studioID int64) ([]filmState, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, studio_id, title, genre, phase, phase_weeks_left,
		       quality_score, critic_score, audience_score,
		       marketing_budget, release_week, release_year, theater_count,
		       weekly_box_office, total_box_office,
		       share_map, weekly_by_territory, total_by_territory, weeks_below_floor
		FROM game.films
		WHERE studio_id = $1 AND phase <> 'archived'
		ORDER BY id
		FOR UPDATE
	`, studioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []filmState
	for rows.Next() {
		var f filmState
		if err := rows.Scan(
			&f.ID, &f.StudioID, &f.Title, &f.Genre, &f.Phase, &f.PhaseWeeksLeft,
			&f.QualityScore, &f.CriticScore, &f.AudienceScore,
			&f.MarketingBudget, &f.ReleaseWeek, &f.ReleaseYear, &f.TheaterCount,
			&f.Weekly, &f.Total,
			&f.ShareMap, &f.WeeklyByTerr, &f.TotalByTerr, &f.WeeksBelowFloor,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func persistFilmTx(ctx context.Context, tx pgx.Tx, f *filmState) error {
	_, err := tx.Exec(ctx, `
		UPDATE game.films
		SET phase = $1,
		    phase_weeks_left = $2,
		    critic_score = $3,
		    audience_score = $4,
		    theater_count = $5,
		    weekly_box_office = $6,
		    total_box_office = $7,
		    share_map = $8,
		    weekly_by_territory = $9,
		    total_by_territory = $10,
		    weeks_below_floor = $11,
		    updated_at = now()
		WHERE id = $12
	`, f.Phase, f.PhaseWeeksLeft, f.CriticScore, f.AudienceScore, f.TheaterCount,
		f.Weekly, f.Total, f.ShareMap, f.WeeklyByTerr, f.TotalByTerr,
		f.WeeksBelowFloor, f.ID)
	return err
}

func recordAwardWatchTx(ctx context.Context, tx pgx.Tx, c AwardCandidate, week, year int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO game.award_watch (film_id, week, year, critic_score, audience_score, total_box_office)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.FilmID, week, year, c.CriticScore, c.AudienceScore, c.TotalBoxOffice)
	return err
}

// AdvanceSessionWeek runs exactly one orchestration pass for a multiplayer
// session: the shared clock ticks once and every member studio's films are
// simulated against it. The caller must be a session member. A concurrent
// request for the same session is rejected, never interleaved.
func (s *Service) AdvanceSessionWeek(ctx context.Context, sessionID int64, userID string) (AdvanceReport, error) {
	var report AdvanceReport

	view, err := s.SessionState(ctx, sessionID)
	if err != nil {
		return report, err
	}
	if view.Status != SessionActive {
		return report, ErrSessionNotActive
	}
	if _, ok := view.Member(userID); !ok {
		return report, ErrNotSessionMember
	}

	key := fmt.Sprintf("session:%d", sessionID)
	tok, err := s.advances.begin(key, advanceLockTTL)
	if err != nil {
		return report, err
	}
	defer s.advances.end(key, tok)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return report, err
	}
	defer tx.Rollback(ctx)

	var week, year int
	err = tx.QueryRow(ctx, `
		SELECT current_week, current_year FROM game.sessions WHERE id = $1 FOR UPDATE
	`, sessionID).Scan(&week, &year)
	if err == pgx.ErrNoRows {
		return report, ErrSessionNotFound
	}
	if err != nil {
		return report, err
	}
	week, year = advanceCalendar(week, year)
	if _, err := tx.Exec(ctx, `
		UPDATE game.sessions SET current_week = $1, current_year = $2, updated_at = now() WHERE id = $3
	`, week, year, sessionID); err != nil {
		return report, err
	}

	report.Week, report.Year = week, year
	for _, p := range view.Players {
		if p.StudioID == 0 {
			continue
		}
		// keep member studio clocks following the session clock
		if _, err := tx.Exec(ctx, `
			UPDATE game.studios SET current_week = $1, current_year = $2, updated_at = now() WHERE id = $3
		`, week, year, p.StudioID); err != nil {
			return report, err
		}
		sub, err := s.advanceStudioFilmsTx(ctx, tx, p.StudioID, week, year)
		if err != nil {
			return report, err
		}
		report.Films = append(report.Films, sub.Films...)
		report.Credits = append(report.Credits, sub.Credits...)
		report.AwardWatch = append(report.AwardWatch, sub.AwardWatch...)
		report.Skipped = append(report.Skipped, sub.Skipped...)
	}
	return report, tx.Commit(ctx)
}

// AutoAdvanceStudios is the worker entry point: it advances every solo studio
// that opted into auto-advance. Studios seated in an active multiplayer
// session are excluded; their clock belongs to the session.
func (s *Service) AutoAdvanceStudios(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `
		SELECT st.owner_user_id
		FROM game.studios st
		WHERE st.auto_advance = true
		  AND NOT EXISTS (
		      SELECT 1
		      FROM game.session_players sp
		      JOIN game.sessions se ON se.id = sp.session_id
		      WHERE sp.studio_id = st.id AND se.status = 'active'
		  )
		ORDER BY st.id
	`)
	if err != nil {
		return err
	}
	var owners []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return err
		}
		owners = append(owners, userID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, userID := range owners {
		if _, err := s.AdvanceStudioWeek(ctx, userID); err != nil {
			s.log.Error("auto advance failed", "user_id", userID, "err", err)
		}
	}
	return nil
}

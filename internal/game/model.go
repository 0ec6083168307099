package game

import (
	"errors"
	"math/rand"
	"strings"
	"time"
)

const (
	// StartingBudget is the founding capital of a new studio.
	StartingBudget = int64(100_000_000)

	// MinTheatricalWeekly is the weekly gross below which a release is
	// considered done in theaters; ArchiveWeeksBelowFloor consecutive weeks
	// under it archive the film.
	MinTheatricalWeekly    = int64(1_000)
	ArchiveWeeksBelowFloor = 2

	// StreamingPayoutRate is the one-time streaming-deal credit paid out when
	// a film leaves theaters, as a fraction of its cumulative gross.
	StreamingPayoutRate    = 0.05
	MinStreamingPayout     = int64(250_000)
	OpeningTheaterCount    = 3_800
	theaterDropPerWeek     = 320
	minTheaterCount        = 150
	advanceLockTTL         = 30 * time.Second
	SessionCodeLength      = 6
	DefaultSessionPlayers  = 4
	MaxSessionPlayers      = 8
	DefaultProductionSpend = int64(25_000_000)
)

// Film lifecycle phases, in order. Released and archived are handled by the
// weekly orchestrator; archived is terminal.
const (
	PhaseDevelopment    = "development"
	PhasePreProduction  = "pre_production"
	PhaseProduction     = "production"
	PhasePostProduction = "post_production"
	PhaseReleased       = "released"
	PhaseArchived       = "archived"
)

// Session statuses. lobby -> active -> ended, never backwards.
const (
	SessionLobby  = "lobby"
	SessionActive = "active"
	SessionEnded  = "ended"
)

var (
	ErrStudioNotFound       = errors.New("studio not found")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrFilmNotFound         = errors.New("film not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidGenre         = errors.New("unknown genre")
	ErrInsufficientFunds    = errors.New("insufficient studio budget")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAdvanceInFlight      = errors.New("a week advance is already in progress")
	ErrNotSessionMember     = errors.New("caller is not a member of this session")
	ErrNotHost              = errors.New("only the session host may do that")
	ErrPlayersNotReady      = errors.New("all players must be ready")
	ErrSessionNotJoinable   = errors.New("session is not accepting players")
	ErrSessionNotActive     = errors.New("session is not active")
	ErrSessionFull          = errors.New("session is full")
	ErrStudioInSession      = errors.New("studio clock is owned by an active session")
)

var validGenres = map[string]bool{
	"action":   true,
	"comedy":   true,
	"drama":    true,
	"family":   true,
	"horror":   true,
	"romance":  true,
	"sci_fi":   true,
	"thriller": true,
}

func ValidateGenre(genre string) error {
	if !validGenres[strings.ToLower(strings.TrimSpace(genre))] {
		return ErrInvalidGenre
	}
	return nil
}

// phaseWeeks is the default duration of each pre-release phase.
var phaseWeeks = map[string]int{
	PhaseDevelopment:    6,
	PhasePreProduction:  4,
	PhaseProduction:     10,
	PhasePostProduction: 6,
}

// PreReleaseWeeks is the total length of the pre-release pipeline.
func PreReleaseWeeks() int {
	total := 0
	for _, w := range phaseWeeks {
		total += w
	}
	return total
}

// nextPhase returns the phase after p in the pre-release chain. The move into
// released is gated on the scheduled release date, so post_production maps to
// released here but the orchestrator decides when to take it.
func nextPhase(p string) (string, bool) {
	switch p {
	case PhaseDevelopment:
		return PhasePreProduction, true
	case PhasePreProduction:
		return PhaseProduction, true
	case PhaseProduction:
		return PhasePostProduction, true
	case PhasePostProduction:
		return PhaseReleased, true
	default:
		return "", false
	}
}

// advanceCalendar steps the simulated clock one week, rolling the year.
func advanceCalendar(week, year int) (int, int) {
	week++
	if week > 52 {
		return 1, year + 1
	}
	return week, year
}

// calendarReached reports whether clock (week, year) is at or past the
// scheduled (targetWeek, targetYear).
func calendarReached(week, year, targetWeek, targetYear int) bool {
	if year != targetYear {
		return year > targetYear
	}
	return week >= targetWeek
}

// addWeeks advances (week, year) by n weeks.
func addWeeks(week, year, n int) (int, int) {
	for i := 0; i < n; i++ {
		week, year = advanceCalendar(week, year)
	}
	return week, year
}

// sessionCodeAlphabet omits easily confused characters.
const sessionCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func sessionCode(rng *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < SessionCodeLength; i++ {
		b.WriteByte(sessionCodeAlphabet[rng.Intn(len(sessionCodeAlphabet))])
	}
	return b.String()
}

// streamingPayout is the one-time credit for a film leaving theaters.
func streamingPayout(totalBoxOffice int64) int64 {
	payout := int64(float64(totalBoxOffice) * StreamingPayoutRate)
	if payout < MinStreamingPayout {
		return MinStreamingPayout
	}
	return payout
}

// theaterCountFor decays screen count over the run of a release.
func theaterCountFor(weeksInRelease int) int {
	count := OpeningTheaterCount - weeksInRelease*theaterDropPerWeek
	if count < minTheaterCount {
		return minTheaterCount
	}
	return count
}

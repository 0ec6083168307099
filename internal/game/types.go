package game

import "time"

type StudioView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Budget      int64      `json:"budget"`
	CurrentWeek int        `json:"current_week"`
	CurrentYear int        `json:"current_year"`
	AutoAdvance bool       `json:"auto_advance"`
	Films       []FilmView `json:"films,omitempty"`
}

type FilmView struct {
	ID                int64              `json:"id"`
	StudioID          int64              `json:"studio_id"`
	Title             string             `json:"title"`
	Genre             string             `json:"genre"`
	Phase             string             `json:"phase"`
	PhaseWeeksLeft    int                `json:"phase_weeks_left"`
	QualityScore      int                `json:"quality_score"`
	CriticScore       int                `json:"critic_score"`
	AudienceScore     int                `json:"audience_score"`
	MarketingBudget   int64              `json:"marketing_budget"`
	ReleaseWeek       int                `json:"release_week"`
	ReleaseYear       int                `json:"release_year"`
	TheaterCount      int                `json:"theater_count"`
	WeeklyBoxOffice   []int64            `json:"weekly_box_office"`
	TotalBoxOffice    int64              `json:"total_box_office"`
	WeeklyByTerritory []map[string]int64 `json:"weekly_box_office_by_territory"`
	TotalByTerritory  map[string]int64   `json:"total_box_office_by_territory"`
	CreatedAt         time.Time          `json:"created_at"`
}

type CreateFilmInput struct {
	UserID          string
	Title           string
	Genre           string
	MarketingBudget int64
	ProductionSpend int64
	// ReleaseWeek/ReleaseYear of zero schedule the release for the first
	// week after the production pipeline completes.
	ReleaseWeek    int
	ReleaseYear    int
	IdempotencyKey string
}

// FilmTickResult is one film's outcome within an orchestration pass.
type FilmTickResult struct {
	FilmID      int64            `json:"film_id"`
	Title       string           `json:"title"`
	Phase       string           `json:"phase"`
	WeekRevenue int64            `json:"week_revenue"`
	ByTerritory map[string]int64 `json:"by_territory,omitempty"`
	Archived    bool             `json:"archived"`
}

// BudgetCredit is the studio-budget hook payload emitted per weekly update.
type BudgetCredit struct {
	StudioID int64  `json:"studio_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

// AwardCandidate is the award-eligibility hook payload emitted per released
// film per week. Nomination logic lives with the awards collaborator.
type AwardCandidate struct {
	FilmID         int64 `json:"film_id"`
	CriticScore    int   `json:"critic_score"`
	AudienceScore  int   `json:"audience_score"`
	TotalBoxOffice int64 `json:"total_box_office"`
}

// AdvanceReport summarizes one orchestration pass.
type AdvanceReport struct {
	Week       int              `json:"week"`
	Year       int              `json:"year"`
	Films      []FilmTickResult `json:"films"`
	Credits    []BudgetCredit   `json:"credits"`
	AwardWatch []AwardCandidate `json:"award_watch"`
	// Skipped lists films excluded from this pass because their records were
	// malformed; they are reported, not fatal.
	Skipped []int64 `json:"skipped,omitempty"`
}

type PlayerView struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	StudioID    int64  `json:"studio_id,omitempty"`
	IsHost      bool   `json:"is_host"`
	IsReady     bool   `json:"is_ready"`
	IsConnected bool   `json:"is_connected"`
}

type SessionView struct {
	ID          int64        `json:"id"`
	Code        string       `json:"code"`
	HostUserID  string       `json:"host_user_id"`
	Status      string       `json:"status"`
	CurrentWeek int          `json:"current_week"`
	CurrentYear int          `json:"current_year"`
	MaxPlayers  int          `json:"max_players"`
	Players     []PlayerView `json:"players"`
}

// AllReady reports whether every player in the session has readied up.
func (v SessionView) AllReady() bool {
	if len(v.Players) == 0 {
		return false
	}
	for _, p := range v.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// Member returns the player entry for userID, if present.
func (v SessionView) Member(userID string) (PlayerView, bool) {
	for _, p := range v.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return PlayerView{}, false
}

type LeaderboardRow struct {
	Rank       int64  `json:"rank"`
	StudioName string `json:"studio_name"`
	Username   string `json:"username"`
	TotalGross int64  `json:"total_gross"`
}

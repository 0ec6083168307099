package game

import (
	"math/rand"
	"testing"
)

func TestNextPhaseChain(t *testing.T) {
	want := []string{PhasePreProduction, PhaseProduction, PhasePostProduction, PhaseReleased}
	phase := PhaseDevelopment
	for i, expect := range want {
		next, ok := nextPhase(phase)
		if !ok {
			t.Fatalf("step %d: nextPhase(%q) not ok", i, phase)
		}
		if next != expect {
			t.Fatalf("step %d: nextPhase(%q) = %q, want %q", i, phase, next, expect)
		}
		phase = next
	}
	if _, ok := nextPhase(PhaseReleased); ok {
		t.Fatalf("released must be terminal in the pre-release chain")
	}
	if _, ok := nextPhase(PhaseArchived); ok {
		t.Fatalf("archived must have no successor")
	}
}

func TestAdvanceCalendar(t *testing.T) {
	cases := []struct {
		week, year         int
		wantWeek, wantYear int
	}{
		{1, 1, 2, 1},
		{51, 1, 52, 1},
		{52, 1, 1, 2},
		{52, 3, 1, 4},
	}
	for _, tc := range cases {
		w, y := advanceCalendar(tc.week, tc.year)
		if w != tc.wantWeek || y != tc.wantYear {
			t.Fatalf("advanceCalendar(%d, %d) = (%d, %d), want (%d, %d)",
				tc.week, tc.year, w, y, tc.wantWeek, tc.wantYear)
		}
	}
}

func TestAddWeeksWrapsYears(t *testing.T) {
	cases := []struct {
		week, year, add    int
		wantWeek, wantYear int
	}{
		{1, 1, 0, 1, 1},
		{1, 1, 51, 52, 1},
		{1, 1, 52, 1, 2},
		{50, 1, 5, 3, 2},
		{10, 2, 104, 10, 4},
	}
	for _, tc := range cases {
		w, y := addWeeks(tc.week, tc.year, tc.add)
		if w != tc.wantWeek || y != tc.wantYear {
			t.Fatalf("addWeeks(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tc.week, tc.year, tc.add, w, y, tc.wantWeek, tc.wantYear)
		}
	}
}

func TestCalendarReached(t *testing.T) {
	cases := []struct {
		week, year, tWeek, tYear int
		want                     bool
	}{
		{5, 1, 5, 1, true},
		{6, 1, 5, 1, true},
		{4, 1, 5, 1, false},
		{52, 1, 1, 2, false},
		{1, 2, 52, 1, true},
	}
	for _, tc := range cases {
		got := calendarReached(tc.week, tc.year, tc.tWeek, tc.tYear)
		if got != tc.want {
			t.Fatalf("calendarReached(%d,%d, %d,%d) = %v, want %v",
				tc.week, tc.year, tc.tWeek, tc.tYear, got, tc.want)
		}
	}
}

func TestSessionCodeShape(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := sessionCode(rng)
		if len(code) != SessionCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), SessionCodeLength)
		}
		for _, r := range code {
			switch r {
			case '0', '1', 'I', 'O':
				t.Fatalf("code %q contains ambiguous character %q", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 150 {
		t.Fatalf("only %d distinct codes in 200 draws", len(seen))
	}
}

func TestStreamingPayout(t *testing.T) {
	cases := []struct {
		total int64
		want  int64
	}{
		{0, MinStreamingPayout},
		{1_000_000, MinStreamingPayout},
		{4_999_999, MinStreamingPayout},
		{100_000_000, 5_000_000},
		{1_000_000_000, 50_000_000},
	}
	for _, tc := range cases {
		if got := streamingPayout(tc.total); got != tc.want {
			t.Fatalf("streamingPayout(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}

func TestTheaterCountDecaysToFloor(t *testing.T) {
	if got := theaterCountFor(0); got != OpeningTheaterCount {
		t.Fatalf("opening count = %d, want %d", got, OpeningTheaterCount)
	}
	prev := theaterCountFor(0)
	for wk := 1; wk < 30; wk++ {
		cur := theaterCountFor(wk)
		if cur > prev {
			t.Fatalf("theater count rose at week %d: %d > %d", wk, cur, prev)
		}
		if cur < minTheaterCount {
			t.Fatalf("theater count %d fell below floor %d at week %d", cur, minTheaterCount, wk)
		}
		prev = cur
	}
	if got := theaterCountFor(100); got != minTheaterCount {
		t.Fatalf("long-run count = %d, want floor %d", got, minTheaterCount)
	}
}

func TestValidateGenre(t *testing.T) {
	for _, g := range []string{"action", "horror", "Horror", " THRILLER ", "sci_fi", "romance"} {
		if err := ValidateGenre(g); err != nil {
			t.Fatalf("ValidateGenre(%q) = %v, want nil", g, err)
		}
	}
	for _, g := range []string{"", "western", "sci-fi", "horror movie"} {
		if err := ValidateGenre(g); err == nil {
			t.Fatalf("ValidateGenre(%q) = nil, want error", g)
		}
	}
}

func TestSessionViewReadiness(t *testing.T) {
	var empty SessionView
	if empty.AllReady() {
		t.Fatalf("empty session must not report all ready")
	}

	v := SessionView{Players: []PlayerView{
		{UserID: "a", IsReady: true},
		{UserID: "b", IsReady: false},
	}}
	if v.AllReady() {
		t.Fatalf("session with an unready player must not report all ready")
	}
	v.Players[1].IsReady = true
	if !v.AllReady() {
		t.Fatalf("session with every player ready must report all ready")
	}

	if _, ok := v.Member("a"); !ok {
		t.Fatalf("Member(a) should find seated player")
	}
	if _, ok := v.Member("nobody"); ok {
		t.Fatalf("Member(nobody) should not find a player")
	}
}

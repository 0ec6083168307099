package game

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marquee/internal/boxoffice"
)

func newTestService(t *testing.T, seed int64) *Service {
	t.Helper()
	cal, err := boxoffice.NewCalendar(boxoffice.DefaultHolidays())
	if err != nil {
		t.Fatalf("NewCalendar: %v", err)
	}
	engine, err := boxoffice.NewEngine(boxoffice.DefaultTerritories(), cal, seed)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return NewService(nil, engine, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAdvanceGuardSingleFlight(t *testing.T) {
	g := advanceGuard{inflight: make(map[string]guardEntry)}

	tok, err := g.begin("studio:1", advanceLockTTL)
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := g.begin("studio:1", advanceLockTTL); err != ErrAdvanceInFlight {
		t.Fatalf("second begin = %v, want ErrAdvanceInFlight", err)
	}
	if _, err := g.begin("studio:2", advanceLockTTL); err != nil {
		t.Fatalf("other key must not be blocked: %v", err)
	}
	g.end("studio:1", tok)
	if _, err := g.begin("studio:1", advanceLockTTL); err != nil {
		t.Fatalf("begin after end: %v", err)
	}
}

func TestAdvanceGuardConcurrent(t *testing.T) {
	g := advanceGuard{inflight: make(map[string]guardEntry)}

	const workers = 32
	var won atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.begin("session:9", advanceLockTTL); err == nil {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if got := won.Load(); got != 1 {
		t.Fatalf("%d goroutines acquired the lock, want exactly 1", got)
	}
}

func TestAdvanceGuardStealsStaleEntry(t *testing.T) {
	g := advanceGuard{inflight: map[string]guardEntry{
		"studio:5": {started: time.Now().Add(-time.Minute), token: 7},
	}}
	if _, err := g.begin("studio:5", advanceLockTTL); err != nil {
		t.Fatalf("stale entry must be stolen, got %v", err)
	}
	if _, err := g.begin("studio:5", advanceLockTTL); err != ErrAdvanceInFlight {
		t.Fatalf("fresh entry after steal = %v, want ErrAdvanceInFlight", err)
	}
}

func TestAdvanceGuardEndOnlyReleasesOwnEntry(t *testing.T) {
	g := advanceGuard{inflight: make(map[string]guardEntry)}

	stale, err := g.begin("session:3", advanceLockTTL)
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	g.mu.Lock()
	e := g.inflight["session:3"]
	e.started = time.Now().Add(-time.Minute)
	g.inflight["session:3"] = e
	g.mu.Unlock()

	thief, err := g.begin("session:3", advanceLockTTL)
	if err != nil {
		t.Fatalf("stale entry must be stolen, got %v", err)
	}

	// The original pass finishing late must not free the thief's slot.
	g.end("session:3", stale)
	if _, err := g.begin("session:3", advanceLockTTL); err != ErrAdvanceInFlight {
		t.Fatalf("begin after stale release = %v, want ErrAdvanceInFlight", err)
	}

	g.end("session:3", thief)
	if _, err := g.begin("session:3", advanceLockTTL); err != nil {
		t.Fatalf("begin after thief release: %v", err)
	}
}

func TestApplyWeekKeepsRecordsConsistent(t *testing.T) {
	f := &filmState{}
	weeks := []struct {
		revenue int64
		split   map[string]int64
	}{
		{10_000_000, map[string]int64{"NA": 4_000_000, "MX": 6_000_000}},
		{5_500_000, map[string]int64{"NA": 2_500_000, "MX": 3_000_000}},
		{0, map[string]int64{"NA": 0, "MX": 0}},
	}

	var wantTotal int64
	for _, w := range weeks {
		applyWeek(f, w.revenue, w.split)
		wantTotal += w.revenue
	}

	if len(f.Weekly) != len(weeks) {
		t.Fatalf("weekly length = %d, want %d", len(f.Weekly), len(weeks))
	}
	if len(f.WeeklyByTerr) != len(weeks) {
		t.Fatalf("weekly territory length = %d, want %d", len(f.WeeklyByTerr), len(weeks))
	}
	if f.Total != wantTotal {
		t.Fatalf("total = %d, want %d", f.Total, wantTotal)
	}

	var sum int64
	for _, v := range f.Weekly {
		sum += v
	}
	if sum != f.Total {
		t.Fatalf("sum of weekly entries %d != total %d", sum, f.Total)
	}
	var terrSum int64
	for _, v := range f.TotalByTerr {
		terrSum += v
	}
	if terrSum != f.Total {
		t.Fatalf("territory totals sum %d != total %d", terrSum, f.Total)
	}
}

func TestTickFilmPreReleaseChain(t *testing.T) {
	s := newTestService(t, 42)
	f := &filmState{
		ID:             1,
		Title:          "Quiet Harbor",
		Genre:          "drama",
		Phase:          PhaseDevelopment,
		PhaseWeeksLeft: 2,
		QualityScore:   70,
		ReleaseWeek:    52,
		ReleaseYear:    5,
	}

	res, credit, err := s.tickFilm(f, 1, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if credit != 0 {
		t.Fatalf("pre-release tick credited %d", credit)
	}
	if res.Phase != PhaseDevelopment || f.PhaseWeeksLeft != 1 {
		t.Fatalf("after tick: phase %q, weeks left %d", res.Phase, f.PhaseWeeksLeft)
	}

	res, _, err = s.tickFilm(f, 2, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.Phase != PhasePreProduction {
		t.Fatalf("phase = %q, want %q", res.Phase, PhasePreProduction)
	}
	if f.PhaseWeeksLeft != phaseWeeks[PhasePreProduction] {
		t.Fatalf("weeks left = %d, want %d", f.PhaseWeeksLeft, phaseWeeks[PhasePreProduction])
	}
}

func TestTickFilmHoldsForReleaseWeek(t *testing.T) {
	s := newTestService(t, 42)
	f := &filmState{
		ID:             2,
		Title:          "Night Circuit",
		Genre:          "action",
		Phase:          PhasePostProduction,
		PhaseWeeksLeft: 1,
		QualityScore:   80,
		ReleaseWeek:    20,
		ReleaseYear:    1,
	}

	// clock still short of the scheduled release
	res, credit, err := s.tickFilm(f, 10, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.Phase != PhasePostProduction || credit != 0 {
		t.Fatalf("early tick: phase %q, credit %d", res.Phase, credit)
	}

	res, credit, err = s.tickFilm(f, 20, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.Phase != PhaseReleased {
		t.Fatalf("release-week tick: phase %q, want released", res.Phase)
	}
	if res.WeekRevenue <= 0 {
		t.Fatalf("opening week earned %d, want positive", res.WeekRevenue)
	}
	if credit != res.WeekRevenue {
		t.Fatalf("credit %d != opening revenue %d", credit, res.WeekRevenue)
	}
	if f.ShareMap == nil {
		t.Fatalf("share map must be generated on the first released tick")
	}
	if f.TheaterCount != OpeningTheaterCount {
		t.Fatalf("opening theaters = %d, want %d", f.TheaterCount, OpeningTheaterCount)
	}
	if f.CriticScore < 0 || f.CriticScore > 100 || f.AudienceScore < 0 || f.AudienceScore > 100 {
		t.Fatalf("reception scores out of range: critic %d audience %d", f.CriticScore, f.AudienceScore)
	}

	var split int64
	for _, v := range res.ByTerritory {
		split += v
	}
	if split != res.WeekRevenue {
		t.Fatalf("territory split sums to %d, revenue %d", split, res.WeekRevenue)
	}
}

func TestTickFilmShareMapIsStable(t *testing.T) {
	s := newTestService(t, 99)
	f := &filmState{
		ID:           3,
		Title:        "Red Meridian",
		Genre:        "thriller",
		Phase:        PhaseReleased,
		QualityScore: 65,
		ReleaseWeek:  1,
		ReleaseYear:  1,
	}

	if _, _, err := s.tickFilm(f, 2, 1); err != nil {
		t.Fatalf("tick: %v", err)
	}
	first := make(boxoffice.ShareMap, len(f.ShareMap))
	for k, v := range f.ShareMap {
		first[k] = v
	}

	for wk := 3; wk <= 8; wk++ {
		if _, _, err := s.tickFilm(f, wk, 1); err != nil {
			t.Fatalf("tick week %d: %v", wk, err)
		}
	}
	if len(f.ShareMap) != len(first) {
		t.Fatalf("share map size changed across weeks")
	}
	for k, v := range first {
		if f.ShareMap[k] != v {
			t.Fatalf("share for %s drifted: %v -> %v", k, v, f.ShareMap[k])
		}
	}
}

func TestTickFilmArchivesAfterFloorWeeks(t *testing.T) {
	s := newTestService(t, 7)
	f := &filmState{
		ID:              4,
		Title:           "Last Matinee",
		Genre:           "comedy",
		Phase:           PhaseReleased,
		QualityScore:    40,
		ReleaseWeek:     1,
		ReleaseYear:     1,
		Weekly:          []int64{500},
		Total:           500,
		WeeklyByTerr:    []map[string]int64{{"NA": 500}},
		TotalByTerr:     map[string]int64{"NA": 500},
		ShareMap:        boxoffice.ShareMap{"NA": 1.0},
		WeeksBelowFloor: 1,
	}

	res, credit, err := s.tickFilm(f, 3, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	// 500 in the prior week decays under the $1,000 floor again, which is
	// the second consecutive miss and retires the film.
	if !res.Archived || f.Phase != PhaseArchived {
		t.Fatalf("film not archived: archived=%v phase=%q", res.Archived, f.Phase)
	}
	if want := res.WeekRevenue + streamingPayout(f.Total); credit != want {
		t.Fatalf("credit = %d, want revenue plus streaming payout %d", credit, want)
	}
	if credit < MinStreamingPayout {
		t.Fatalf("archive credit %d below minimum streaming payout", credit)
	}
}

func TestTickFilmSkipsMalformedRecord(t *testing.T) {
	s := newTestService(t, 1)
	f := &filmState{ID: 5, Title: "Broken Reel", Genre: "western", Phase: PhaseReleased}
	if _, _, err := s.tickFilm(f, 1, 1); err == nil {
		t.Fatalf("malformed genre must error so the pass can skip the film")
	}

	f = &filmState{ID: 6, Title: "No Phase", Genre: "drama", Phase: "limbo"}
	if _, _, err := s.tickFilm(f, 1, 1); err == nil {
		t.Fatalf("unknown phase must error")
	}
}

func TestClampScore(t *testing.T) {
	cases := []struct{ in, want int }{
		{-5, 0}, {0, 0}, {50, 50}, {100, 100}, {130, 100},
	}
	for _, tc := range cases {
		if got := clampScore(tc.in); got != tc.want {
			t.Fatalf("clampScore(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

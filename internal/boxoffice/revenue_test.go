package boxoffice

import (
	"testing"
)

func TestWeeklyRevenueNeverNegative(t *testing.T) {
	e := testEngine(t, 41)
	qualities := []int{0, 25, 50, 80, 100, -5, 300}
	marketing := []int64{0, 5_000_000, 30_000_000, 1_000_000_000, -1}
	weeks := []int{0, 1, 5, 20, 52, 104}
	simWeeks := []int{2, 5, 44} // plain, Super Bowl, Halloween

	for _, q := range qualities {
		for _, m := range marketing {
			for _, wir := range weeks {
				for _, sw := range simWeeks {
					f := FilmWeek{
						Genre:           "horror",
						QualityScore:    q,
						MarketingBudget: m,
						WeeksInRelease:  wir,
						PrevWeekRevenue: 3_000_000,
					}
					if got := e.WeeklyRevenue(f, sw); got < 0 {
						t.Fatalf("q=%d m=%d wir=%d week=%d: negative revenue %d", q, m, wir, sw, got)
					}
				}
			}
		}
	}
}

func TestMarketingMultiplierSaturates(t *testing.T) {
	tests := []struct {
		spend int64
		want  float64
	}{
		{0, 1.0},
		{-100, 1.0},
		{15_000_000, 1.5},
		{30_000_000, 2.0},
		{90_000_000, 2.0}, // capped
	}
	for _, tc := range tests {
		if got := marketingMultiplier(tc.spend); got != tc.want {
			t.Fatalf("spend=%d got=%v want=%v", tc.spend, got, tc.want)
		}
	}
}

func TestQualityFactor(t *testing.T) {
	tests := []struct {
		quality int
		want    float64
	}{
		{0, 0.5},
		{50, 0.75},
		{80, 0.9},
		{100, 1.0},
		{-1, 0.75},  // falls back to default 50
		{999, 0.75}, // falls back to default 50
	}
	for _, tc := range tests {
		if got := qualityFactor(tc.quality); got != tc.want {
			t.Fatalf("quality=%d got=%v want=%v", tc.quality, got, tc.want)
		}
	}
}

func TestDecayDominatesNoiseOnAverage(t *testing.T) {
	var week1Sum, week10Sum float64
	const runs = 1000

	for run := 0; run < runs; run++ {
		e := testEngine(t, int64(run+1))
		f := FilmWeek{Genre: "drama", QualityScore: 70, MarketingBudget: 20_000_000}
		prev := e.WeeklyRevenue(f, 2) // opening, non-holiday
		var week1, week10 int64
		for wir := 1; wir <= 20; wir++ {
			f.WeeksInRelease = wir
			f.PrevWeekRevenue = prev
			// weeks 2..22 of the calendar avoid large holiday spikes near
			// the sampled points
			prev = e.WeeklyRevenue(f, 2+wir)
			if wir == 1 {
				week1 = prev
			}
			if wir == 10 {
				week10 = prev
			}
		}
		week1Sum += float64(week1)
		week10Sum += float64(week10)
	}

	if week10Sum/runs >= week1Sum/runs {
		t.Fatalf("mean week10 revenue %.0f not below mean week1 revenue %.0f", week10Sum/runs, week1Sum/runs)
	}
}

func TestOpeningWeekExpectation(t *testing.T) {
	e := testEngine(t, 47)
	f := FilmWeek{
		Genre:           "drama",
		QualityScore:    80,
		MarketingBudget: 30_000_000,
	}
	// Deterministic part: 8M baseline x 2.0 marketing cap x 0.9 quality.
	const center = 8_000_000 * 2.0 * 0.9

	var sum float64
	const draws = 5000
	for i := 0; i < draws; i++ {
		rev := e.WeeklyRevenue(f, 2) // non-holiday week
		if float64(rev) < center*openingVarianceMin-1 || float64(rev) > center*openingVarianceMax {
			t.Fatalf("draw %d: %d outside variance envelope around %v", i, rev, center)
		}
		sum += float64(rev)
	}
	mean := sum / draws
	if mean < center*0.95 || mean > center*1.05 {
		t.Fatalf("mean opening %v too far from %v", mean, center)
	}
}

func TestOpeningSplitSumsToOpening(t *testing.T) {
	e := testEngine(t, 53)
	f := FilmWeek{Genre: "action", QualityScore: 80, MarketingBudget: 30_000_000}
	opening := e.WeeklyRevenue(f, 2)
	shares := e.GenerateShareMap()
	split := e.Split(opening, shares)
	var sum int64
	for _, amt := range split {
		sum += amt
	}
	if sum != opening {
		t.Fatalf("territory split sums to %d, opening was %d", sum, opening)
	}
}

func TestHolidayCanBuckDecay(t *testing.T) {
	e := testEngine(t, 59)
	f := FilmWeek{
		Genre:           "horror",
		QualityScore:    70,
		MarketingBudget: 10_000_000,
		WeeksInRelease:  3,
		PrevWeekRevenue: 4_000_000,
	}
	// Worst case retention is 0.50; Halloween horror multiplies by 2.21, so
	// the week must beat the previous one.
	if got := e.WeeklyRevenue(f, 44); got <= f.PrevWeekRevenue {
		t.Fatalf("halloween horror week %d did not beat previous %d", got, f.PrevWeekRevenue)
	}
}

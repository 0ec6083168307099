package boxoffice

import "math"

// FilmWeek is the slice of film state the revenue calculator reads.
// WeeksInRelease is the number of weekly entries already recorded (0 on the
// opening week); PrevWeekRevenue is the most recent entry when WeeksInRelease
// is positive.
type FilmWeek struct {
	Genre           string
	QualityScore    int
	MarketingBudget int64
	WeeksInRelease  int
	PrevWeekRevenue int64
}

// WeeklyRevenue computes a film's gross for the given simulation week.
// Never negative, never an error: malformed quality or marketing fields fall
// back to defaults rather than failing the tick.
func (e *Engine) WeeklyRevenue(f FilmWeek, week int) int64 {
	holiday := e.calendar.Multiplier(week, f.Genre)

	var revenue float64
	if f.WeeksInRelease <= 0 {
		variance := openingVarianceMin + e.nextFloat()*(openingVarianceMax-openingVarianceMin)
		revenue = e.openingEstimate(f) * holiday * variance
	} else {
		decay := decayStart - float64(f.WeeksInRelease)*decayStep
		if decay < decayFloor {
			decay = decayFloor
		}
		decay += e.nextFloat() * decayJitter
		prev := f.PrevWeekRevenue
		if prev < 0 {
			prev = 0
		}
		revenue = float64(prev) * decay * holiday
	}

	out := int64(math.Floor(revenue))
	if out < 0 {
		out = 0
	}
	return out
}

// openingEstimate is the deterministic part of the opening-week gross:
// baseline scaled by marketing and quality.
func (e *Engine) openingEstimate(f FilmWeek) float64 {
	return float64(BaselineOpening) * marketingMultiplier(f.MarketingBudget) * qualityFactor(f.QualityScore)
}

// marketingMultiplier grows linearly with spend and saturates at
// MarketingMultCap once spend reaches the reference level. Negative spend is
// treated as zero marketing.
func marketingMultiplier(spend int64) float64 {
	if spend <= 0 {
		return 1.0
	}
	mult := 1.0 + float64(spend)/float64(ReferenceMarketingSpend)
	if mult > MarketingMultCap {
		mult = MarketingMultCap
	}
	return mult
}

// qualityFactor maps quality 0..100 onto 0.5..1.0. The 0.5 floor keeps a bad
// film earning something; runs of literal zero revenue read as a bug to
// players. Out-of-range scores use DefaultQuality.
func qualityFactor(quality int) float64 {
	if quality < 0 || quality > 100 {
		quality = DefaultQuality
	}
	return 0.5 + 0.5*float64(quality)/100
}

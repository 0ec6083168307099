package boxoffice

// ShareMap maps territory code to a normalized fraction of a revenue total.
// Values sum to 1 across the included territories.
type ShareMap map[string]float64

// GenerateShare draws a market share inside the territory's configured range.
// The draw is the mean of two uniforms, so it is center-weighted but can still
// reach either extreme. Clamped against floating-point drift.
func (e *Engine) GenerateShare(t Territory) float64 {
	u := (e.nextFloat() + e.nextFloat()) / 2
	share := t.MinShare + u*(t.MaxShare-t.MinShare)
	if share < t.MinShare {
		share = t.MinShare
	}
	if share > t.MaxShare {
		share = t.MaxShare
	}
	return share
}

// GenerateShareMap draws a share for every territory and renormalizes so the
// map sums to exactly 1. Every draw is bounded by its own range, so
// renormalization only rescales.
func (e *Engine) GenerateShareMap() ShareMap {
	return e.shareMapFor(e.territories)
}

func (e *Engine) shareMapFor(table []Territory) ShareMap {
	if len(table) == 0 {
		return ShareMap{}
	}
	shares := make(ShareMap, len(table))
	var sum float64
	for _, t := range table {
		s := e.GenerateShare(t)
		shares[t.Code] = s
		sum += s
	}
	for code := range shares {
		shares[code] /= sum
	}
	return shares
}

// Split allocates total across the share map. Every territory but the last
// (in canonical table order) gets floor(total * share); the last included
// territory absorbs the rounding remainder so the split always sums to total
// exactly. The remainder bias is a deliberate policy, kept identical across
// calls for determinism.
func (e *Engine) Split(total int64, shares ShareMap) map[string]int64 {
	out := make(map[string]int64, len(shares))
	if len(shares) == 0 {
		return out
	}
	if total <= 0 {
		for code := range shares {
			out[code] = 0
		}
		return out
	}
	included := make([]string, 0, len(shares))
	for _, t := range e.territories {
		if _, ok := shares[t.Code]; ok {
			included = append(included, t.Code)
		}
	}
	var allocated int64
	for i, code := range included {
		if i == len(included)-1 {
			out[code] = total - allocated
			break
		}
		amt := int64(float64(total) * shares[code])
		out[code] = amt
		allocated += amt
	}
	return out
}

// SplitSubset generates an ephemeral share map over only the given territory
// codes, renormalized across the subset, and splits total by it. Used when a
// film has opened in some territories only, or for one-off aggregate splits.
// Unknown codes are ignored; an empty subset yields an empty map.
func (e *Engine) SplitSubset(total int64, codes []string) map[string]int64 {
	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}
	subset := make([]Territory, 0, len(codes))
	for _, t := range e.territories {
		if wanted[t.Code] {
			subset = append(subset, t)
		}
	}
	return e.Split(total, e.shareMapFor(subset))
}

package boxoffice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Holiday is a calendar event that scales a week's box office. Overall applies
// to every release that week; GenreMults layers a per-genre adjustment on top
// (absent genres default to 1.0). The composed multiplier can land above or
// below 1 in any combination.
type Holiday struct {
	Name       string             `yaml:"name"`
	Week       int                `yaml:"week"`
	Overall    float64            `yaml:"overall"`
	GenreMults map[string]float64 `yaml:"genre_multipliers"`
}

// Calendar indexes holidays by simulation week. At most one holiday occupies
// a week.
type Calendar struct {
	byWeek map[int]Holiday
}

// DefaultHolidays returns the built-in release calendar.
func DefaultHolidays() []Holiday {
	return []Holiday{
		{Name: "New Year's Weekend", Week: 1, Overall: 1.10, GenreMults: map[string]float64{"family": 1.20}},
		{Name: "Super Bowl Weekend", Week: 5, Overall: 0.75, GenreMults: map[string]float64{"romance": 1.15}},
		{Name: "Valentine's Day", Week: 7, Overall: 1.10, GenreMults: map[string]float64{"romance": 1.45, "horror": 0.85}},
		{Name: "Memorial Day", Week: 21, Overall: 1.25, GenreMults: map[string]float64{"action": 1.25}},
		{Name: "Independence Day", Week: 27, Overall: 1.30, GenreMults: map[string]float64{"action": 1.30, "family": 1.15}},
		{Name: "Labor Day", Week: 36, Overall: 0.90, GenreMults: map[string]float64{"horror": 1.10}},
		{Name: "Halloween", Week: 44, Overall: 1.30, GenreMults: map[string]float64{"horror": 1.70, "romance": 0.75, "family": 0.85}},
		{Name: "Thanksgiving", Week: 47, Overall: 1.35, GenreMults: map[string]float64{"family": 1.40, "drama": 1.10}},
		{Name: "Christmas", Week: 51, Overall: 1.45, GenreMults: map[string]float64{"family": 1.50, "drama": 1.20, "horror": 0.70}},
	}
}

// NewCalendar builds a Calendar, rejecting malformed or colliding entries.
func NewCalendar(holidays []Holiday) (Calendar, error) {
	byWeek := make(map[int]Holiday, len(holidays))
	for _, h := range holidays {
		if h.Week < 1 || h.Week > WeeksPerYear {
			return Calendar{}, fmt.Errorf("holiday %q: week %d out of range", h.Name, h.Week)
		}
		if h.Overall <= 0 {
			return Calendar{}, fmt.Errorf("holiday %q: overall multiplier must be > 0", h.Name)
		}
		for genre, m := range h.GenreMults {
			if m <= 0 {
				return Calendar{}, fmt.Errorf("holiday %q: genre %q multiplier must be > 0", h.Name, genre)
			}
		}
		if prev, ok := byWeek[h.Week]; ok {
			return Calendar{}, fmt.Errorf("week %d claimed by both %q and %q", h.Week, prev.Name, h.Name)
		}
		byWeek[h.Week] = h
	}
	return Calendar{byWeek: byWeek}, nil
}

// ByWeek returns the holiday active in the given week, if any.
func (c Calendar) ByWeek(week int) (Holiday, bool) {
	h, ok := c.byWeek[week]
	return h, ok
}

// Multiplier composes the week's overall and genre-specific multipliers.
// A week with no holiday is 1.0.
func (c Calendar) Multiplier(week int, genre string) float64 {
	h, ok := c.byWeek[week]
	if !ok {
		return 1.0
	}
	mult := h.Overall
	if g, ok := h.GenreMults[genre]; ok {
		mult *= g
	}
	return mult
}

// LoadCalendar reads a holiday calendar from a YAML file. An empty path
// returns the built-in calendar.
func LoadCalendar(path string) (Calendar, error) {
	if path == "" {
		return NewCalendar(DefaultHolidays())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Calendar{}, fmt.Errorf("read holiday calendar: %w", err)
	}
	var doc struct {
		Holidays []Holiday `yaml:"holidays"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Calendar{}, fmt.Errorf("parse holiday calendar: %w", err)
	}
	return NewCalendar(doc.Holidays)
}

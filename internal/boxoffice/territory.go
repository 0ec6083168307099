package boxoffice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Territory is one modeled theatrical market. Code is the canonical key for
// every internal map; DisplayName is presentation-only. Declaration order in
// the table is the canonical iteration order for splits.
type Territory struct {
	Code         string  `yaml:"code"`
	DisplayName  string  `yaml:"display_name"`
	NominalShare float64 `yaml:"nominal_share"`
	MinShare     float64 `yaml:"min_share"`
	MaxShare     float64 `yaml:"max_share"`
}

// DefaultTerritories returns the built-in eleven-market table. Shares are
// fractions of worldwide gross and intentionally do not sum to 1; they are
// renormalized whenever a share map is generated.
func DefaultTerritories() []Territory {
	return []Territory{
		{Code: "NA", DisplayName: "North America", NominalShare: 0.40, MinShare: 0.30, MaxShare: 0.50},
		{Code: "CN", DisplayName: "China", NominalShare: 0.18, MinShare: 0.08, MaxShare: 0.28},
		{Code: "JP", DisplayName: "Japan", NominalShare: 0.07, MinShare: 0.04, MaxShare: 0.10},
		{Code: "UK", DisplayName: "United Kingdom", NominalShare: 0.06, MinShare: 0.04, MaxShare: 0.09},
		{Code: "FR", DisplayName: "France", NominalShare: 0.05, MinShare: 0.03, MaxShare: 0.07},
		{Code: "DE", DisplayName: "Germany", NominalShare: 0.05, MinShare: 0.03, MaxShare: 0.07},
		{Code: "KR", DisplayName: "South Korea", NominalShare: 0.04, MinShare: 0.02, MaxShare: 0.06},
		{Code: "IN", DisplayName: "India", NominalShare: 0.04, MinShare: 0.02, MaxShare: 0.07},
		{Code: "AU", DisplayName: "Australia", NominalShare: 0.03, MinShare: 0.02, MaxShare: 0.05},
		{Code: "BR", DisplayName: "Brazil", NominalShare: 0.03, MinShare: 0.02, MaxShare: 0.05},
		{Code: "MX", DisplayName: "Mexico", NominalShare: 0.03, MinShare: 0.02, MaxShare: 0.05},
	}
}

func validateTerritories(table []Territory) error {
	if len(table) == 0 {
		return fmt.Errorf("territory table is empty")
	}
	seen := make(map[string]bool, len(table))
	for _, t := range table {
		if t.Code == "" {
			return fmt.Errorf("territory %q has no code", t.DisplayName)
		}
		if seen[t.Code] {
			return fmt.Errorf("duplicate territory code %q", t.Code)
		}
		seen[t.Code] = true
		if t.MinShare < 0 || t.MinShare > t.NominalShare || t.NominalShare > t.MaxShare || t.MaxShare > 1 {
			return fmt.Errorf("territory %s: want 0 <= min <= nominal <= max <= 1, got min=%v nominal=%v max=%v",
				t.Code, t.MinShare, t.NominalShare, t.MaxShare)
		}
	}
	return nil
}

// LoadTerritories reads a territory table from a YAML file. An empty path
// returns the built-in table.
func LoadTerritories(path string) ([]Territory, error) {
	if path == "" {
		return DefaultTerritories(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read territory table: %w", err)
	}
	var doc struct {
		Territories []Territory `yaml:"territories"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse territory table: %w", err)
	}
	if err := validateTerritories(doc.Territories); err != nil {
		return nil, err
	}
	return doc.Territories, nil
}

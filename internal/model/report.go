package model

import "time"

// RarityReport is the aggregate rarity summary produced after a run
type RarityReport struct {
	Project     string            `json:"project"`
	GeneratedAt time.Time         `json:"generated_at"`
	Seed        uint64            `json:"seed"`
	SpaceSize   uint64            `json:"space_size"`   // Combination space cardinality
	Draws       int               `json:"draws"`        // Artifacts produced
	TotalWeight float64           `json:"total_weight"` // Sum of every selectable option's weight
	Average     float64           `json:"average"`      // Mean of per-option percentages
	Options     []OptionRarity    `json:"options"`      // Sorted by category, then option
	Formulas    map[string]string `json:"formulas"`     // Definitions of each figure
}

// OptionRarity is the realized frequency of a single trait option
type OptionRarity struct {
	Category    string  `json:"category"`
	Option      string  `json:"option"`
	Weight      float64 `json:"weight"`      // Configured weight
	Appearances int     `json:"appearances"` // Times drawn
	Percentage  float64 `json:"percentage"`  // appearances / draws * 100
}

// Formula descriptions reported alongside the numbers
const (
	FormulaArtifactRarity = "round(sum(option weights) / sum(all option weights) * 100, 2)"
	FormulaOptionPercent  = "round(appearances / draws * 100, 2)"
	FormulaAverage        = "round(mean(option percentages), 2)"
)

// DefaultFormulas returns the formula map attached to every report
func DefaultFormulas() map[string]string {
	return map[string]string{
		"artifact_rarity":   FormulaArtifactRarity,
		"option_percentage": FormulaOptionPercent,
		"average":           FormulaAverage,
	}
}

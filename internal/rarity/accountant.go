package rarity

import (
	"math"
	"sort"
	"time"

	"github.com/ppiankov/layerforge/internal/model"
	"github.com/ppiankov/layerforge/internal/traits"
)

// Accountant tracks realized trait frequencies over a run
type Accountant struct {
	totalWeight float64 // Sum of every selectable option's weight, fixed at load time
	options     []*model.TraitOption
	counts      map[string]int // Keyed by TraitOption.Key
	draws       int
}

// NewAccountant creates an accountant over every selectable option in pools
func NewAccountant(pools []*traits.Pool) *Accountant {
	a := &Accountant{counts: make(map[string]int)}
	for _, p := range pools {
		for _, o := range p.Options() {
			a.options = append(a.options, o)
			a.totalWeight += o.Weight
			a.counts[o.Key()] = 0
		}
	}
	return a
}

// TotalWeight returns the sum of all option weights
func (a *Accountant) TotalWeight() float64 {
	return a.totalWeight
}

// Score returns a combination's rarity: its weight as a percentage of all option weights
func (a *Accountant) Score(c model.Combination) float64 {
	if a.totalWeight == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range c.Options {
		sum += o.Weight
	}
	return Round2(sum / a.totalWeight * 100)
}

// Observe records one drawn combination
func (a *Accountant) Observe(c model.Combination) {
	a.draws++
	for _, o := range c.Options {
		a.counts[o.Key()]++
	}
}

// Draws returns the number of observed combinations
func (a *Accountant) Draws() int {
	return a.draws
}

// Appearances returns how many times an option has been drawn
func (a *Accountant) Appearances(o *model.TraitOption) int {
	return a.counts[o.Key()]
}

// Report computes per-option percentages and their average
func (a *Accountant) Report() model.RarityReport {
	options := make([]model.OptionRarity, 0, len(a.options))
	sum := 0.0
	for _, o := range a.options {
		count := a.counts[o.Key()]
		pct := 0.0
		if a.draws > 0 {
			pct = float64(count) / float64(a.draws) * 100
		}
		sum += pct
		options = append(options, model.OptionRarity{
			Category:    o.Category,
			Option:      o.Name,
			Weight:      o.Weight,
			Appearances: count,
			Percentage:  Round2(pct),
		})
	}

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Category != options[j].Category {
			return options[i].Category < options[j].Category
		}
		return options[i].Option < options[j].Option
	})

	average := 0.0
	if len(options) > 0 {
		average = Round2(sum / float64(len(options)))
	}

	return model.RarityReport{
		GeneratedAt: time.Now().UTC(),
		Draws:       a.draws,
		TotalWeight: a.totalWeight,
		Average:     average,
		Options:     options,
		Formulas:    model.DefaultFormulas(),
	}
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

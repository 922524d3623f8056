package model

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Categories = []CategoryConfig{{Name: "Background 1"}, {Name: "Shape 2"}}
	return cfg
}

func TestDefaultConfig_NeedsCategories(t *testing.T) {
	err := DefaultConfig().Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := validConfig()
	cfg.ProjectName = " "
	cfg.Amount = 0
	cfg.Categories = append(cfg.Categories,
		CategoryConfig{Name: "Shape 2"},
		CategoryConfig{Name: "Eyes 3", Weights: []WeightConfig{{Option: "laser", Weight: -1}}},
	)
	cfg.Upload.Enabled = true
	cfg.Upload.MaxAttempts = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"project_name", "amount", "duplicate category", "negative weight", "max_attempts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestCategoryConfig_Helpers(t *testing.T) {
	c := CategoryConfig{Name: "Eyes 3", Weights: []WeightConfig{{Option: "laser", Weight: 0.5}, {Option: "none", Weight: 0}}}
	if c.Directory() != "Eyes 3" {
		t.Errorf("directory = %q", c.Directory())
	}
	c.Dir = "eyes"
	if c.Directory() != "eyes" {
		t.Errorf("directory = %q", c.Directory())
	}

	weights := c.WeightMap()
	if weights["laser"] != 0.5 {
		t.Errorf("laser weight = %v", weights["laser"])
	}
	if w, ok := weights["none"]; !ok || w != 0 {
		t.Errorf("zero weight must be kept as an exclusion, got %v %v", w, ok)
	}
}

func TestOutputPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = "out"
	if got := cfg.OutputPath("ledger.db"); got != filepath.Join("out", "ledger.db") {
		t.Errorf("relative path = %q", got)
	}
	abs := filepath.Join(string(filepath.Separator), "tmp", "ledger.db")
	if got := cfg.OutputPath(abs); got != abs {
		t.Errorf("absolute path = %q", got)
	}
	if got := cfg.OutputPath(""); got != "" {
		t.Errorf("empty path = %q", got)
	}
}

func TestCombinationKeyAndSorted(t *testing.T) {
	shape := &TraitOption{Category: "Shape 2", Name: "circle"}
	bg := &TraitOption{Category: "Background 1", Name: "red"}
	c := Combination{Options: []*TraitOption{shape, bg}}

	if c.Key() != "Shape 2/circle|Background 1/red" {
		t.Errorf("key = %q", c.Key())
	}
	sorted := c.Sorted()
	if sorted[0] != bg || sorted[1] != shape {
		t.Error("sorted must order by category name")
	}
	if c.Options[0] != shape {
		t.Error("Sorted must not reorder the combination")
	}
	if !c.Equal(Combination{Options: []*TraitOption{{Category: "Shape 2", Name: "circle"}, {Category: "Background 1", Name: "red"}}}) {
		t.Error("equal combinations compared unequal")
	}
	if ArtifactName("Forge", 3) != "Forge#3" {
		t.Errorf("artifact name = %q", ArtifactName("Forge", 3))
	}
}

package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config is the fully resolved run configuration
type Config struct {
	ProjectName string           `yaml:"project_name" mapstructure:"project_name"`
	Description string           `yaml:"description" mapstructure:"description"`
	Amount      int              `yaml:"amount" mapstructure:"amount"`
	Seed        uint64           `yaml:"seed" mapstructure:"seed"` // 0 picks a random seed
	TraitsDir   string           `yaml:"traits_dir" mapstructure:"traits_dir"`
	OutputDir   string           `yaml:"output_dir" mapstructure:"output_dir"`
	Categories  []CategoryConfig `yaml:"categories" mapstructure:"categories"`

	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Upload      UploadConfig      `yaml:"upload" mapstructure:"upload"`
	Ledger      LedgerConfig      `yaml:"ledger" mapstructure:"ledger"`
	Preview     PreviewConfig     `yaml:"preview" mapstructure:"preview"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// CategoryConfig names one trait category. Order in the config file is the
// combination tuple order.
type CategoryConfig struct {
	// Name is the category identifier, "<Label> <order>" (e.g. "Background 1")
	Name string `yaml:"name" mapstructure:"name"`
	// Dir defaults to Name, relative to TraitsDir
	Dir string `yaml:"dir,omitempty" mapstructure:"dir"`
	// Weights overrides the 1.0 default per option
	Weights []WeightConfig `yaml:"weights,omitempty" mapstructure:"weights"`
}

// WeightConfig overrides the rarity weight of one option. Weight 0 excludes it.
type WeightConfig struct {
	Option string  `yaml:"option" mapstructure:"option"` // File stem
	Weight float64 `yaml:"weight" mapstructure:"weight"`
}

// ConcurrencyConfig controls compositing parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig controls the layer and upload receipt caches
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// UploadConfig controls pinning of images and metadata
type UploadConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	Gateway           string        `yaml:"gateway" mapstructure:"gateway"` // Prefix for image URIs
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// LedgerConfig controls the SQLite run ledger
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// PreviewConfig controls the animated GIF preview
type PreviewConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Path    string        `yaml:"path" mapstructure:"path"`
	Delay   time.Duration `yaml:"delay" mapstructure:"delay"`
}

// OutputConfig controls console output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		ProjectName: "layerforge",
		Description: "",
		Amount:      1,
		TraitsDir:   ".",
		OutputDir:   "output",
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".layerforge-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Upload: UploadConfig{
			Enabled:           false,
			Endpoint:          "https://api.pinata.cloud/pinning/pinFileToIPFS",
			Gateway:           "ipfs://",
			Timeout:           10 * time.Second,
			MaxAttempts:       3,
			RequestsPerSecond: 2,
			Burst:             1,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "ledger.db",
		},
		Preview: PreviewConfig{
			Enabled: false,
			Path:    "preview.gif",
			Delay:   500 * time.Millisecond,
		},
	}
}

// ErrInvalidConfig marks configuration validation failures
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks every field the generator relies on
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.ProjectName) == "" {
		problems = append(problems, "project_name is required")
	}
	if c.Amount <= 0 {
		problems = append(problems, fmt.Sprintf("amount must be positive, got %d", c.Amount))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "output_dir is required")
	}
	if len(c.Categories) == 0 {
		problems = append(problems, "at least one category is required")
	}

	seen := make(map[string]bool)
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			problems = append(problems, fmt.Sprintf("categories[%d]: name is required", i))
			continue
		}
		if seen[cat.Name] {
			problems = append(problems, fmt.Sprintf("categories[%d]: duplicate category %q", i, cat.Name))
		}
		seen[cat.Name] = true

		for _, w := range cat.Weights {
			if w.Weight < 0 {
				problems = append(problems, fmt.Sprintf("category %q: option %q has negative weight %v", cat.Name, w.Option, w.Weight))
			}
		}
	}

	if c.Upload.Enabled {
		if c.Upload.Endpoint == "" {
			problems = append(problems, "upload.endpoint is required when upload is enabled")
		}
		if c.Upload.MaxAttempts <= 0 {
			problems = append(problems, "upload.max_attempts must be positive")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// WeightMap returns the configured weight overrides for a category, keyed by option stem
func (c CategoryConfig) WeightMap() map[string]float64 {
	weights := make(map[string]float64, len(c.Weights))
	for _, w := range c.Weights {
		weights[w.Option] = w.Weight
	}
	return weights
}

// Directory returns the category's directory name relative to the traits dir
func (c CategoryConfig) Directory() string {
	if c.Dir != "" {
		return c.Dir
	}
	return c.Name
}

// OutputPath resolves p against OutputDir unless it is absolute
func (c *Config) OutputPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.OutputDir, p)
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/layerforge/internal/model"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "v0.1.0"

const projectConfigFile = "layerforge.yaml"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "layerforge",
	Short: "Layerforge - weighted generative art from layered traits",
	Long: `Layerforge builds a collection of unique images by stacking one trait
image per category.

Each combination of traits is drawn at most once, with probability
proportional to the combined rarity weights of its traits. Every artifact
gets a PNG, a metadata document, and a rarity score; the run is recorded
in a local ledger so it can be reproduced from its seed.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "layerforge %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./layerforge.yaml, then $HOME/.layerforge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case fileExists(projectConfigFile):
		viper.SetConfigFile(projectConfigFile)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".layerforge"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults(model.DefaultConfig())

	// LAYERFORGE_AMOUNT, LAYERFORGE_UPLOAD_ENABLED, ...
	viper.SetEnvPrefix("LAYERFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every scalar key so environment overrides apply
func setDefaults(cfg *model.Config) {
	defaults := map[string]any{
		"project_name":               cfg.ProjectName,
		"description":                cfg.Description,
		"amount":                     cfg.Amount,
		"seed":                       cfg.Seed,
		"traits_dir":                 cfg.TraitsDir,
		"output_dir":                 cfg.OutputDir,
		"concurrency.workers":        cfg.Concurrency.Workers,
		"cache.enabled":              cfg.Cache.Enabled,
		"cache.dir":                  cfg.Cache.Dir,
		"cache.memory_ttl":           cfg.Cache.MemoryTTL,
		"cache.disk_ttl":             cfg.Cache.DiskTTL,
		"upload.enabled":             cfg.Upload.Enabled,
		"upload.endpoint":            cfg.Upload.Endpoint,
		"upload.gateway":             cfg.Upload.Gateway,
		"upload.timeout":             cfg.Upload.Timeout,
		"upload.max_attempts":        cfg.Upload.MaxAttempts,
		"upload.requests_per_second": cfg.Upload.RequestsPerSecond,
		"upload.burst":               cfg.Upload.Burst,
		"upload.http_proxy":          cfg.Upload.HTTPProxy,
		"upload.https_proxy":         cfg.Upload.HTTPSProxy,
		"ledger.enabled":             cfg.Ledger.Enabled,
		"ledger.path":                cfg.Ledger.Path,
		"preview.enabled":            cfg.Preview.Enabled,
		"preview.path":               cfg.Preview.Path,
		"preview.delay":              cfg.Preview.Delay,
		"output.verbose":             cfg.Output.Verbose,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadConfig resolves defaults, config file, environment and bound flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/layerforge/internal/model"
)

var initPath string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Layerforge configuration",
	Long: `Manage Layerforge configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (LAYERFORGE_*)
3. Config file (./layerforge.yaml or ~/.layerforge/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file, and environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" && fileExists(configFile) {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out, "  Current Configuration")
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		fmt.Fprintln(out, string(yamlData))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a project configuration file",
	Long:  `Create a configuration file (default ./layerforge.yaml) with every option and an example category layout.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if _, err := os.Stat(initPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'layerforge config show' to view it, or delete it first to recreate", initPath)
		}

		f, err := os.Create(initPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		printf := func(format string, a ...any) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# Layerforge Configuration File\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (LAYERFORGE_*)\n")
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n")
		printf("#\n")
		printf("# Categories are stacked in name order. Each name ends with its\n")
		printf("# order number, which is dropped from the metadata label.\n")
		printf("# Weight overrides must name an existing trait file, without extension.\n\n")

		yamlData, marshalErr := yaml.Marshal(exampleConfig())
		if marshalErr != nil {
			return fmt.Errorf("error marshaling config: %w", marshalErr)
		}
		if err == nil {
			if _, wErr := f.Write(yamlData); wErr != nil {
				return fmt.Errorf("error writing config: %w", wErr)
			}
		}

		printf("\n# Upload credentials are read from the environment only:\n")
		printf("#   export LAYERFORGE_PINATA_JWT=...\n")

		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created configuration: %s\n", initPath)
		fmt.Fprintf(out, "\nTo generate a collection:\n")
		fmt.Fprintf(out, "  layerforge generate --config %s\n", initPath)
		return nil
	},
}

// exampleConfig is the default configuration with a sample category layout
func exampleConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.TraitsDir = "traits"
	cfg.Categories = []model.CategoryConfig{
		{Name: "Background 1"},
		{Name: "Body 2"},
		{Name: "Eyes 3", Weights: []model.WeightConfig{{Option: "laser", Weight: 0.1}}},
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&initPath, "path", projectConfigFile, "where to write the configuration")
}

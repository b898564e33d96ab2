package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/inkr/am"
	"github.com/teranos/inkr/engine"
	"gopkg.in/yaml.v3"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage inkr engine configuration",
	Long: `am: manage inkr engine configuration ("I am")

Display and validate the engine configuration. Triggers, templates and
increments live in the configuration root, not here.

Configuration sources (in order of precedence):
1. Command line flags (--root)
2. Environment variables (INKR_* prefix)
3. Project config (./am.toml, searched upwards)
4. User config (~/.inkr/am.toml)
5. System config (/etc/inkr/am.toml)
6. Default values

Examples:
  inkr am show                    # Show current configuration
  inkr am show --format json      # Show configuration in JSON format
  inkr am validate                # Validate configuration and configuration root`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current inkr engine configuration from all sources",
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate the engine configuration and parse every trigger and template definition of the configuration root",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# inkr engine configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# inkr engine configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	e, err := engine.New(cfg, nil)
	if err != nil {
		return err
	}
	templates, err := e.GetAllTemplates()
	if err != nil {
		return err
	}
	increments, err := e.GetAllIncrements()
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Configuration is valid: %d templates, %d increments under %s",
		len(templates), len(increments), cfg.Generator.ConfigRoot)
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	fmt.Println("Configuration cascade (later overrides earlier):")
	for i, path := range am.ConfigPaths() {
		state := pterm.Gray("missing")
		if _, err := os.Stat(path); err == nil {
			state = pterm.LightGreen("found")
		}
		fmt.Printf("  %d. %s %s\n", i+1, path, state)
	}
	fmt.Println("  env: INKR_* environment variables")
	return nil
}

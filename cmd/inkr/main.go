package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/inkr/cmd/inkr/commands"
	"github.com/teranos/inkr/display"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"

	// Compiled-in technologies register themselves
	_ "github.com/teranos/inkr/plugins/java"
	_ "github.com/teranos/inkr/plugins/object"
)

var rootCmd = &cobra.Command{
	Use:   "inkr",
	Short: "inkr - configuration-driven artifact generator",
	Long: `inkr - configuration-driven artifact generator.

inkr matches input objects against triggers, renders the templates of the
matching increments into a target tree, and detects which increment produced
existing files and with which values.

Available commands:
  generate   - Render increments or templates for an input
  detect     - Recover substituted values from generated files
  increments - List increments (all, or matching an input)
  templates  - List templates (all, or matching an input)
  plugins    - List compiled-in technologies
  watch      - Reload the configuration root on change
  history    - Show recorded generate runs
  am         - Manage inkr engine configuration ("I am")
  version    - Show version information

Examples:
  inkr increments --type object --input order.yaml
  inkr generate --type object --input order.yaml --target out java_pojo/logic_impl
  inkr detect java_pojo/logic_impl src/ --app-root .
  inkr am show --format json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		logger.Debugw("Logger initialized", "verbosity", logger.LevelName(verbosity))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Engine configuration file (default: am.toml cascade)")
	rootCmd.PersistentFlags().String("root", "", "Configuration root holding context.yaml (overrides generator.config_root)")

	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.DetectCmd)
	rootCmd.AddCommand(commands.IncrementsCmd)
	rootCmd.AddCommand(commands.TemplatesCmd)
	rootCmd.AddCommand(commands.PluginsCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if display.ShouldOutputJSON(rootCmd) {
			_ = display.WriteJSON(os.Stderr, display.NewErrorView(err))
			os.Exit(1)
		}
		pterm.Error.Printf("[%s] %v\n", errors.Kind(err), err)
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}

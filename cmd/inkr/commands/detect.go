package commands

import (
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/inkr/detect"
	"github.com/teranos/inkr/display"
	"github.com/teranos/inkr/workspace"
)

var detectAppRoot string

// DetectCmd recovers substituted values from generated files
var DetectCmd = &cobra.Command{
	Use:   "detect INCREMENT PATH...",
	Short: "Recover substituted values from generated files",
	Long: `Detect which files an increment produced and which values were substituted.

A single directory PATH is walked and filtered by the technology's file
filter. Several PATHs, or a single file, are scanned as given. Relative paths
are taken relative to --app-root, which defaults to the enclosing git worktree
(or the working directory outside one).

Examples:
  inkr detect java_pojo/logic_impl src/
  inkr detect logic_impl src/OrderImpl.java src/Order.java --app-root ~/shop`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDetect,
}

func init() {
	DetectCmd.Flags().StringVar(&detectAppRoot, "app-root", "", "Application root (default: enclosing git worktree)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	inc, err := e.Increment(args[0])
	if err != nil {
		return err
	}

	appRoot := detectAppRoot
	if appRoot == "" {
		if appRoot, err = workspace.AppRoot("."); err != nil {
			return err
		}
	}

	var matches []detect.PatternMatch
	if len(args) == 2 {
		matches, err = e.Detect(cmd.Context(), inc, args[1], appRoot)
	} else {
		matches, err = e.DetectFiles(cmd.Context(), inc, args[1:], appRoot)
	}
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(matches)
	}

	pterm.Printf("%s Found %d matches of %s/%s\n\n", pterm.LightCyan("⟐"), len(matches), inc.TriggerID, inc.ID)
	for i, m := range matches {
		pterm.Printf("%s\n", pterm.Yellow("match ", i+1))
		for _, k := range sortedKeys(m.VariableSubstitutions) {
			pterm.Printf("  %s = %s\n", k, pterm.LightGreen(m.VariableSubstitutions[k]))
		}
		for _, k := range sortedKeys(m.TemplateMatches) {
			pterm.Printf("  %s %s %s\n", pterm.Gray(k), pterm.Gray("→"), m.TemplateMatches[k])
		}
		if len(m.Ambiguous) > 0 {
			pterm.Printf("  %s %v\n", pterm.Red("ambiguous:"), m.Ambiguous)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

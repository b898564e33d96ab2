package commands

import (
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/inkr/display"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/generate"
	"github.com/teranos/inkr/journal"
	"github.com/teranos/inkr/logger"
)

var (
	historyLimit int
	historyFile  string
)

// HistoryCmd shows recorded generate runs
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded generate runs",
	Long: `Show generate runs recorded in the journal (generator.journal).

With --file, show the last run that wrote that destination.

Examples:
  inkr history --limit 5
  inkr history --file out/OrderImpl.java`,
	RunE: runHistory,
}

func init() {
	HistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 = all)")
	HistoryCmd.Flags().StringVar(&historyFile, "file", "", "Show the run that last wrote this destination")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Generator.Journal == "" {
		return errors.WithHint(
			errors.NewConfigurationError("no journal configured"),
			"set generator.journal in am.toml or INKR_GENERATOR_JOURNAL")
	}

	j, err := journal.Open(cfg.Generator.Journal, logger.ComponentLogger("journal"))
	if err != nil {
		return err
	}
	defer j.Close()

	var runs []journal.Run
	if historyFile != "" {
		dest, err := filepath.Abs(historyFile)
		if err != nil {
			return errors.Wrapf(err, "cannot resolve %s", historyFile)
		}
		run, err := j.LastWriter(cmd.Context(), dest)
		if err != nil {
			return err
		}
		runs = []journal.Run{*run}
	} else if runs, err = j.History(cmd.Context(), historyLimit); err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		if runs == nil {
			runs = []journal.Run{}
		}
		return display.OutputJSON(runs)
	}
	if len(runs) == 0 {
		pterm.Info.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		status := pterm.LightGreen(r.Status)
		if r.Status != generate.StatusCompleted {
			status = pterm.Red(r.Status)
		}
		pterm.Printf("%s %s %s %s\n", pterm.Gray(r.CreatedAt.Local().Format("2006-01-02 15:04:05")), status, r.ID, pterm.Gray("→ "+r.TargetRoot))
		if r.ErrorMessage != "" {
			pterm.Printf("  %s\n", pterm.Red(r.ErrorMessage))
		}
		for _, e := range r.Entries {
			pterm.Printf("  %-16s %s/%s %s\n", e.Outcome, e.TriggerID, e.TemplateID, pterm.Gray(e.Destination))
		}
	}
	return nil
}

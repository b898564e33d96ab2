package commands

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/display"
	"github.com/teranos/inkr/engine"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/generate"
	"github.com/teranos/inkr/journal"
	"github.com/teranos/inkr/logger"
)

var (
	generateInput  inputFlags
	generateTarget string
	generateForce  bool
)

// GenerateCmd renders increments or templates for an input
var GenerateCmd = &cobra.Command{
	Use:   "generate [INCREMENT|TEMPLATE...]",
	Short: "Render increments or templates for an input",
	Long: `Render increments or templates for an input into a target tree.

Arguments name increments first, then templates. Ids may be qualified as
trigger/id. Without arguments every increment matching the input is
generated. Existing files are kept unless --force is given.

Examples:
  inkr generate -i order.yaml --target out
  inkr generate -i order.yaml --target out java_pojo/logic_impl
  inkr generate -t java -i src/Order.java --target out --force impl`,
	RunE: runGenerate,
}

func init() {
	generateInput.register(GenerateCmd, true)
	GenerateCmd.Flags().StringVarP(&generateTarget, "target", "o", ".", "Target root for generated files")
	GenerateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "Overwrite existing files")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	input, err := generateInput.read(e)
	if err != nil {
		return err
	}

	artifacts, err := selectArtifacts(e, input, args)
	if err != nil {
		return err
	}

	report := e.Generate(cmd.Context(), input, artifacts, generateTarget, generate.Options{ForceOverride: generateForce})
	recordRun(cmd, e, report)
	if report.Status == generate.StatusFailed {
		return report.Err
	}

	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if report.Status == generate.StatusPartiallyFailed {
		return errors.Newf("%d of %d templates failed", len(report.Failed()), len(report.Entries))
	}
	return nil
}

func selectArtifacts(e *engine.Engine, input interface{}, ids []string) ([]configstore.GenerableArtifact, error) {
	if len(ids) == 0 {
		incs, err := e.GetMatchingIncrements(input)
		if err != nil {
			return nil, err
		}
		if len(incs) == 0 {
			return nil, errors.WithHint(
				errors.NewNotFoundError("no increment matches the input"),
				"'inkr increments' lists every configured increment")
		}
		out := make([]configstore.GenerableArtifact, len(incs))
		for i, inc := range incs {
			out[i] = inc
		}
		return out, nil
	}

	out := make([]configstore.GenerableArtifact, 0, len(ids))
	for _, id := range ids {
		inc, err := e.Increment(id)
		if err == nil {
			out = append(out, inc)
			continue
		}
		if !errors.IsNotFoundError(err) {
			return nil, err
		}
		tpl, err := e.Template(id)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

// recordRun appends the report to the journal when one is configured. A
// journal failure never fails the run.
func recordRun(cmd *cobra.Command, e *engine.Engine, report *generate.Report) {
	path := e.Config().Generator.Journal
	if path == "" {
		return
	}
	log := logger.ComponentLogger("journal")
	j, err := journal.Open(path, log)
	if err != nil {
		log.Warnw("Journal unavailable", "path", path, "error", err)
		return
	}
	defer j.Close()

	target, err := filepath.Abs(generateTarget)
	if err != nil {
		target = generateTarget
	}
	if err := j.Record(cmd.Context(), report, e.Root(), target, generateInput.path); err != nil {
		log.Warnw("Failed to record run", logger.FieldReportID, report.ID, "error", err)
	}
}

func printReport(r *generate.Report) {
	for _, entry := range r.Entries {
		name := entry.TriggerID + "/" + entry.TemplateID
		switch entry.Outcome {
		case generate.OutcomeRendered:
			pterm.Printf("  %s %s %s\n", pterm.LightGreen("✓"), name, pterm.Gray(entry.Destination))
		case generate.OutcomeSkippedExists:
			pterm.Printf("  %s %s %s\n", pterm.Yellow("="), name, pterm.Gray(entry.Destination+" exists"))
		case generate.OutcomeSkippedNoMatch:
			pterm.Printf("  %s %s %s\n", pterm.Gray("-"), name, pterm.Gray(entry.Reason))
		default:
			pterm.Printf("  %s %s %s\n", pterm.Red("✗"), name, pterm.Red(entry.Reason))
		}
	}

	summary := fmt.Sprintf("%s: %d written, %d kept, %d failed",
		r.Status, len(r.Written), r.Count(generate.OutcomeSkippedExists), len(r.Failed()))
	if r.Status == generate.StatusCompleted {
		pterm.Success.Println(summary)
	} else {
		pterm.Warning.Println(summary)
	}
}

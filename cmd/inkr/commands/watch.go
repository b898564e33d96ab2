package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// WatchCmd keeps the configuration root validated while it is edited
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload the configuration root on change",
	Long: `Watch the configuration root and reparse it on every change.

Configuration errors are logged as they appear. Stop with Ctrl+C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd)
	if err != nil {
		return err
	}
	if err := e.Reload(); err != nil {
		pterm.Warning.Printfln("configuration currently invalid: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Printfln("watching %s (Ctrl+C to stop)", e.Root())
	return e.Watch(ctx)
}

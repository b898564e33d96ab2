package commands

import (
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"github.com/teranos/inkr/am"
	"github.com/teranos/inkr/engine"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/workspace"
)

// loadConfig reads the engine configuration honoring --config and --root
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *am.Config
	var err error
	if path != "" {
		cfg, err = am.LoadFromFile(path)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cfg.Generator.ConfigRoot = root
	}
	return cfg, nil
}

// openEngine creates an engine over the compiled-in plugins. A remote
// configuration root is fetched first.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, err := workspace.ResolveRoot(cmd.Context(), cfg.Generator.ConfigRoot, "", logger.ComponentLogger("workspace"))
	if err != nil {
		return nil, err
	}
	cfg.Generator.ConfigRoot = root.LocalPath
	return engine.New(cfg, nil)
}

// inputFlags are shared by commands that read an input object
type inputFlags struct {
	technology string
	path       string
	set        string
}

func (f *inputFlags) register(cmd *cobra.Command, required bool) {
	cmd.Flags().StringVarP(&f.technology, "type", "t", "object", "Technology of the input")
	cmd.Flags().StringVarP(&f.path, "input", "i", "", "Input file or directory")
	cmd.Flags().StringVar(&f.set, "set", "", `Reader arguments, shell-quoted (object: 'isEntity=true note="two words"')`)
	if required {
		_ = cmd.MarkFlagRequired("input")
	}
}

func (f *inputFlags) read(e *engine.Engine) (interface{}, error) {
	if f.path == "" {
		return nil, errors.NewInvalidRequestError("no input given")
	}
	args, err := f.readerArgs()
	if err != nil {
		return nil, err
	}
	return e.Read(f.technology, f.path, args...)
}

func (f *inputFlags) readerArgs() ([]interface{}, error) {
	words, err := shellquote.Split(f.set)
	if err != nil {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("cannot parse --set %q: %v", f.set, err),
			"quote values containing spaces, e.g. --set 'note=\"two words\"'")
	}
	args := make([]interface{}, len(words))
	for i, w := range words {
		args[i] = w
	}
	return args, nil
}

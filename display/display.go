// Package display writes command results for humans or, with --json or
// INKR_OUTPUT=json, for machines.
package display

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/inkr/errors"
)

// OutputEnv forces JSON output for every command when set to "json"
const OutputEnv = "INKR_OUTPUT"

// ShouldOutputJSON reports whether cmd should print JSON: an explicit --json
// flag wins, then the root's persistent --json, then INKR_OUTPUT.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return os.Getenv(OutputEnv) == "json"
	}
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}
	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}
	return os.Getenv(OutputEnv) == "json"
}

// MarshalJSON is compact under INKR_OUTPUT=json and indented otherwise
func MarshalJSON(v interface{}) ([]byte, error) {
	if os.Getenv(OutputEnv) == "json" {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

// WriteJSON writes v and a trailing newline to w
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// OutputJSON writes v to stdout
func OutputJSON(v interface{}) error {
	return WriteJSON(os.Stdout, v)
}

// ErrorView is the JSON shape of a failed command
type ErrorView struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Hints   []string `json:"hints,omitempty"`
}

// NewErrorView extracts the stable kind and the user-facing hints of err
func NewErrorView(err error) ErrorView {
	return ErrorView{
		Kind:    errors.Kind(err),
		Message: err.Error(),
		Hints:   errors.GetAllHints(err),
	}
}

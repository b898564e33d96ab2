package generate

import (
	"golang.org/x/tools/imports"

	"github.com/teranos/inkr/logger"
)

// formatGo gofmts src and sorts its import blocks. Output that does not parse is
// written as rendered so the template author can see what went wrong.
func formatGo(dest string, src []byte) []byte {
	out, err := imports.Process(dest, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		logger.Warnw("Rendered Go source does not parse, writing unformatted",
			logger.FieldDestination, dest,
			"error", err)
		return src
	}
	return out
}

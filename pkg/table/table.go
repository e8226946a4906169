// Package table renders pterm tables for command output.
package table

import (
	"github.com/pterm/pterm"
)

// PrintTableNoPad renders rows without row separators. The first row is styled
// as a header when hasHeader is set.
func PrintTableNoPad(rows pterm.TableData, hasHeader bool) {
	if len(rows) == 0 {
		return
	}
	t := pterm.DefaultTable.WithData(rows)
	if hasHeader {
		t = t.WithHasHeader()
	}
	_ = t.Render()
}

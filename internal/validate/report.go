package validate

import (
	"fmt"
	"io"
)

// Report prints one block per result and returns the process exit code:
// 0 when every file is valid, 1 otherwise. quiet hides valid files and the
// summary line.
func Report(w io.Writer, results []Result, quiet bool) int {
	valid := 0
	for _, r := range results {
		if r.Valid {
			valid++
			if !quiet {
				fmt.Fprintf(w, "✓ VALID: %s\n", r.Path)
			}
			continue
		}
		fmt.Fprintf(w, "❌ INVALID: %s\n", r.Path)
		fmt.Fprintf(w, "   Reason: %s\n", r.Message)
	}
	if len(results) > 1 && !quiet {
		fmt.Fprintf(w, "\nSummary: %d/%d files valid, %d invalid\n", valid, len(results), len(results)-valid)
	}
	if valid == len(results) {
		return 0
	}
	return 1
}

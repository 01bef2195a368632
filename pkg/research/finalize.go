package research

import "strings"

// Finalize renders the terminal report: the summary followed by every
// gathered source block in round order.
func Finalize(summary string, sourcesGathered []string) string {
	return "## Summary\n\n" + summary + "\n\n ### Sources:\n" + strings.Join(sourcesGathered, "\n")
}

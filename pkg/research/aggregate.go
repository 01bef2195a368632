package research

import (
	"fmt"
	"strings"
)

const (
	// charsPerToken is the rough estimate used to cap raw excerpts.
	charsPerToken   = 4
	truncatedMarker = "... [truncated]"
)

// FormatSources deduplicates and formats a single batch of sources.
func FormatSources(sources []Source, maxTokensPerSource int, includeRawContent bool) string {
	return DeduplicateAndFormat([][]Source{sources}, maxTokensPerSource, includeRawContent)
}

// DeduplicateAndFormat flattens batches, keeps the first occurrence of every
// URL and renders each unique source as a text block. Raw content is only
// rendered when includeRawContent is set, capped at maxTokensPerSource*4 characters.
func DeduplicateAndFormat(batches [][]Source, maxTokensPerSource int, includeRawContent bool) string {
	seen := make(map[string]bool)
	var unique []Source
	for _, batch := range batches {
		for _, src := range batch {
			if seen[src.URL] {
				continue
			}
			seen[src.URL] = true
			unique = append(unique, src)
		}
	}

	var sb strings.Builder
	sb.WriteString("Sources:\n\n")
	for _, src := range unique {
		fmt.Fprintf(&sb, "Source %s:\n===\n", src.Title)
		fmt.Fprintf(&sb, "URL: %s\n===\n", src.URL)
		fmt.Fprintf(&sb, "Most relevant content from source: %s\n===\n", src.Content)
		if includeRawContent {
			excerpt := truncateRaw(src.RawContent, maxTokensPerSource*charsPerToken)
			fmt.Fprintf(&sb, "Full source content limited to %d tokens: %s\n\n", maxTokensPerSource, excerpt)
		}
	}
	return strings.TrimSpace(sb.String())
}

// truncateRaw cuts raw at limit runes and appends the truncation marker.
func truncateRaw(raw string, limit int) string {
	runes := []rune(raw)
	if len(runes) <= limit {
		return raw
	}
	return string(runes[:limit]) + truncatedMarker
}

// FormatSourceList renders sources as a bullet list of "title : url" lines.
// It does not deduplicate.
func FormatSourceList(sources []Source) string {
	lines := make([]string, 0, len(sources))
	for _, src := range sources {
		lines = append(lines, fmt.Sprintf("* %s : %s", src.Title, src.URL))
	}
	return strings.Join(lines, "\n")
}

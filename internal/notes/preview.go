package notes

import (
	"fmt"
	"strings"
)

// ContentPreview returns the first maxLines lines of content followed by a
// "..." line when content is longer. Shorter content is returned unchanged.
func ContentPreview(content string, maxLines int) string {
	if content == "" || maxLines <= 0 {
		return content
	}

	seen := 0
	for i := 0; i < len(content); i++ {
		if content[i] != '\n' {
			continue
		}
		seen++
		if seen == maxLines {
			return content[:i] + "\n..."
		}
	}
	return content
}

// CountLines returns the number of lines in content. "" has no lines.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// MatchSnippet returns the lines around the first case-insensitive match of
// q in content, numbered like FormatWithLineNumbers. ok is false when q does
// not occur in content.
func MatchSnippet(content, q string, contextLines int) (snippet string, ok bool) {
	if q == "" {
		return "", false
	}
	offset := strings.Index(strings.ToLower(content), strings.ToLower(q))
	if offset < 0 {
		return "", false
	}

	target := strings.Count(content[:min(offset, len(content))], "\n") + 1
	total := CountLines(content)
	start := max(target-contextLines, 1)
	end := min(target+contextLines, total)

	formatted, _ := FormatWithLineNumbers(content, start, end)
	return formatted, true
}

// FormatWithLineNumbers numbers lines the way cat -n does: a 6-wide
// right-aligned number, a tab, then the line. start and end are 1-indexed
// and inclusive; values <= 0 mean the first and last line. It also returns
// the total line count.
func FormatWithLineNumbers(content string, start, end int) (string, int) {
	if content == "" {
		return "", 0
	}

	lines := strings.Split(content, "\n")
	total := len(lines)
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > end {
		return "", total
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		if i > start {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", i, lines[i-1])
	}
	return b.String(), total
}

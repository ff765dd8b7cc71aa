package llmutils

import (
	"regexp"
	"strings"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Truncate shortens a string to at most n characters, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return reThink.ReplaceAllString(s, "")
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var markdownPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```.+?```"),           // fenced code
	regexp.MustCompile("`[^`\n]+`"),               // inline code
	regexp.MustCompile(`\*\*[^*\n]+\*\*`),         // bold
	regexp.MustCompile(`(^|\n)#{1,6} `),           // headers
	regexp.MustCompile(`\[[^\]\n]+\]\([^)\n]+\)`), // links
	regexp.MustCompile(`(^|\n)\s*[-*] `),          // bullet lists
	regexp.MustCompile(`(^|\n)\s*\d+\. `),         // numbered lists
}

// IsMarkdown reports whether text contains Markdown constructs worth
// rendering with a Markdown parse mode. Plain prose stays plain so chat
// platforms don't reject it over stray underscores.
func IsMarkdown(text string) bool {
	for _, re := range markdownPatterns {
		if re.MatchString(text) {
			return true
		}
	}

	return false
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}

	return ""
}

package sensitive

import (
	"regexp"
	"strings"
)

// privateBlockRegex matches <private>...</private> blocks (non-greedy, dotall).
var privateBlockRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

// StripPrivateBlocks removes all <private>...</private> blocks from content
// before it enters analysis. Stripped blocks are replaced by empty string.
func StripPrivateBlocks(content string) string {
	return strings.TrimSpace(privateBlockRegex.ReplaceAllString(content, ""))
}

// OnlyPrivateContent returns true if nothing useful remains after stripping
// private blocks and whitespace.
func OnlyPrivateContent(content string) bool {
	return StripPrivateBlocks(content) == ""
}

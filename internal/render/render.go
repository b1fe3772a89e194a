// Package render formats transcript messages for the host page. Only a
// constrained subset is supported (bold, italics, line breaks), applied
// as a fixed ordered substitution pass over escaped text. Arbitrary
// markup never passes through, which bounds what agent-authored text can
// do inside the embedding page.
package render

import (
	"html"
	"regexp"
	"strings"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern = regexp.MustCompile(`\*([^*]+)\*`)
)

// Format converts message content to safe HTML. Substitution order is
// fixed: escape, bold, italics, then paragraph and line breaks.
func Format(content string) string {
	s := html.EscapeString(content)
	s = boldPattern.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicPattern.ReplaceAllString(s, "<em>$1</em>")

	paragraphs := strings.Split(s, "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = "<p>" + strings.ReplaceAll(p, "\n", "<br>") + "</p>"
	}
	return strings.Join(paragraphs, "")
}

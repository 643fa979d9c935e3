package message

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	blankLines = regexp.MustCompile(`\n[ \t]*\n(\s*\n)*`)
	runsOfWS   = regexp.MustCompile(`[ \t]+`)
)

// blockTags are elements whose opening tag implies a line break in the
// extracted text.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "tr": true, "li": true,
}

// HTMLToText strips markup from an HTML body: script and style contents are
// dropped, block elements become newlines, entities are decoded by the
// tokenizer, and whitespace is collapsed.
func HTMLToText(src string) string {
	tok := html.NewTokenizer(strings.NewReader(src))
	var sb strings.Builder
	skip := 0

	for {
		switch tok.Next() {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())
		case html.StartTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			} else if blockTags[tag] {
				sb.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := tok.TagName()
			if blockTags[string(name)] {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(tok.Text())
			}
		}
	}
}

func collapseWhitespace(s string) string {
	s = runsOfWS.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

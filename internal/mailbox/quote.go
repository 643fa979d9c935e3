package mailbox

import (
	"fmt"
	"strings"
)

// Quote wraps s in a quoted string per RFC 3501 section 9. Backslashes are
// escaped before double quotes so the two rewrites cannot interfere.
//
// Some servers (notably Proton Mail Bridge) reject unquoted mailbox names,
// so every mailbox name and search operand goes through here before it is
// logged or compared against wire output.
func Quote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// Unquote reverses Quote. It fails on input that is not a valid RFC 3501
// quoted string.
func Unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("not a quoted string: %q", s)
	}
	inner := s[1 : len(s)-1]
	var sb strings.Builder
	sb.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' {
			i++
			if i >= len(inner) {
				return "", fmt.Errorf("trailing escape in quoted string: %q", s)
			}
			c = inner[i]
			if c != '\\' && c != '"' {
				return "", fmt.Errorf("invalid escape %q in quoted string", string(c))
			}
		} else if c == '"' {
			return "", fmt.Errorf("unescaped quote in quoted string: %q", s)
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

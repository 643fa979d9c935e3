package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToText(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		want string
	}{
		{
			name: "plain markup",
			src:  "<p>Hello <b>world</b></p>",
			want: "Hello world",
		},
		{
			name: "line breaks",
			src:  "line one<br>line two<br/>line three",
			want: "line one\nline two\nline three",
		},
		{
			name: "script dropped",
			src:  "<p>visible</p><script>alert('hidden')</script>",
			want: "visible",
		},
		{
			name: "style dropped",
			src:  "<style>p { color: red }</style><p>styled</p>",
			want: "styled",
		},
		{
			name: "entities decoded",
			src:  "<p>fish &amp; chips &lt;cheap&gt;</p>",
			want: "fish & chips <cheap>",
		},
		{
			name: "whitespace collapsed",
			src:  "<div>  lots   of\t spaces  </div>",
			want: "lots of spaces",
		},
		{
			name: "table rows",
			src:  "<table><tr><td>a</td></tr><tr><td>b</td></tr></table>",
			want: "a\nb",
		},
		{
			name: "list items",
			src:  "<ul><li>first</li><li>second</li></ul>",
			want: "first\nsecond",
		},
		{
			name: "empty input",
			src:  "",
			want: "",
		},
		{
			name: "no markup",
			src:  "already plain",
			want: "already plain",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTMLToText(tc.src))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a\n\nb", collapseWhitespace("a\n\n\n\nb"))
	assert.Equal(t, "a b", collapseWhitespace("  a \t b  "))
}

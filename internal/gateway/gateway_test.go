package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcmanigal/mcp-email-server/internal/config"
	"github.com/smcmanigal/mcp-email-server/internal/message"
)

func TestDownloadAttachmentDisabled(t *testing.T) {
	g := New(&config.Account{AllowAttachments: false})
	_, err := g.DownloadAttachment("1", "file.pdf", "/tmp/file.pdf", "INBOX")
	assert.ErrorIs(t, err, ErrAttachmentDownloadDisabled)
}

func TestTruncateLimit(t *testing.T) {
	g := New(&config.Account{MaxBodyLength: 20000})
	assert.Equal(t, 20000, g.truncateLimit(0))
	assert.Equal(t, 20000, g.truncateLimit(-5))
	assert.Equal(t, 300, g.truncateLimit(300))
}

func TestDefaultMailbox(t *testing.T) {
	assert.Equal(t, "INBOX", defaultMailbox(""))
	assert.Equal(t, "Archive", defaultMailbox("Archive"))
}

func TestRenderSaveContentMarkdown(t *testing.T) {
	content := &message.Content{
		Subject:    "Weekly digest",
		Sender:     "news@example.com",
		DateHeader: "Tue, 16 Apr 2024 08:00:00 +0000",
		HTML:       "<h1>Top story</h1><p>Something <strong>big</strong> happened.</p>",
	}
	out, err := renderSaveContent(content, "42", SaveMarkdown, true)
	require.NoError(t, err)
	assert.Contains(t, out, "Subject: Weekly digest\n")
	assert.Contains(t, out, "Email-ID: 42\n")
	assert.Contains(t, out, "\n---\n")
	assert.Contains(t, out, "# Top story")
	assert.Contains(t, out, "**big**")
}

func TestRenderSaveContentMarkdownPlainFallback(t *testing.T) {
	content := &message.Content{Text: "plain only"}
	out, err := renderSaveContent(content, "43", SaveMarkdown, false)
	require.NoError(t, err)
	assert.Equal(t, "plain only", out)
}

func TestRenderSaveContentHTML(t *testing.T) {
	content := &message.Content{HTML: "<p>keep markup</p>", Text: "ignored"}
	out, err := renderSaveContent(content, "44", SaveHTML, false)
	require.NoError(t, err)
	assert.Equal(t, "<p>keep markup</p>", out)

	// HTML format falls back to the text body for plain messages.
	out, err = renderSaveContent(&message.Content{Text: "plain"}, "45", SaveHTML, false)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestRenderSaveContentInvalidFormat(t *testing.T) {
	_, err := renderSaveContent(&message.Content{}, "46", SaveFormat("pdf"), false)
	assert.ErrorContains(t, err, "invalid output format")
}

package message

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartFixture = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>, carol@example.com\r\n" +
	"Subject: Quarterly report\r\n" +
	"Date: Mon, 15 Apr 2024 10:30:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"frontier\"\r\n" +
	"\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain text body here.\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML body here.</p>\r\n" +
	"--frontier\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQ=\r\n" +
	"--frontier--\r\n"

const htmlOnlyFixture = "From: news@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Newsletter\r\n" +
	"Date: Tue, 16 Apr 2024 08:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>First paragraph.</p><p>Second paragraph.</p></body></html>\r\n"

func TestDecodeMultipart(t *testing.T) {
	body, err := Decode([]byte(multipartFixture), "101", 0)
	require.NoError(t, err)

	assert.Equal(t, "101", body.ID)
	assert.Equal(t, "Quarterly report", body.Subject)
	assert.Equal(t, "Alice <alice@example.com>", body.Sender)
	assert.Equal(t, []string{"Bob <bob@example.com>", "carol@example.com"}, body.Recipients)
	assert.Equal(t, "<abc123@example.com>", body.MessageID)
	assert.Equal(t, time.Date(2024, time.April, 15, 10, 30, 0, 0, time.UTC), body.Date)

	// Plain part wins over HTML when both are present.
	assert.Equal(t, "Plain text body here.", strings.TrimSpace(body.Body))
	assert.Equal(t, []string{"report.pdf"}, body.Attachments)
}

func TestDecodeUnknownCharset(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: odd charset\r\n" +
		"Date: Mon, 15 Apr 2024 10:30:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"b\"\r\n" +
		"\r\n" +
		"--b\r\n" +
		"Content-Type: text/plain; charset=x-no-such-charset\r\n" +
		"\r\n" +
		"visible caf\xe9 text\r\n" +
		"--b--\r\n"

	body, err := Decode([]byte(raw), "107", 0)
	require.NoError(t, err)

	// The part decodes as UTF-8 with replacement instead of being skipped,
	// so no MIME framing leaks into the body.
	assert.Equal(t, "visible caf� text", body.Body)
	assert.NotContains(t, body.Body, "--b")
	assert.NotContains(t, body.Body, "Content-Type")
	assert.True(t, utf8.ValidString(body.Body))
}

func TestDecodeHTMLFallback(t *testing.T) {
	body, err := Decode([]byte(htmlOnlyFixture), "102", 0)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", body.Body)
}

func TestDecodeDateFallback(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: no date\r\n" +
		"Date: not a date\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hello\r\n"
	before := time.Now().UTC()
	body, err := Decode([]byte(raw), "103", 0)
	require.NoError(t, err)
	assert.False(t, body.Date.Before(before.Truncate(time.Second)))
}

func TestDecodeHeaders(t *testing.T) {
	meta, err := DecodeHeaders([]byte(multipartFixture), "104")
	require.NoError(t, err)
	assert.Equal(t, "104", meta.ID)
	assert.Equal(t, "Quarterly report", meta.Subject)
	assert.Equal(t, "Alice <alice@example.com>", meta.Sender)
	// Header-only decoding cannot see the body walk, so no manifest.
	assert.Empty(t, meta.Attachments)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "exac"+TruncationMarker, Truncate("exact", 4))
	assert.Equal(t, "whole body", Truncate("whole body", 0))
	assert.Equal(t, "whole body", Truncate("whole body", -1))
}

func TestTruncateCountsCharacters(t *testing.T) {
	// The limit is characters, so a cut lands on a rune boundary even when
	// the byte offset would fall inside a multi-byte sequence.
	assert.Equal(t, "hé"+TruncationMarker, Truncate("héllo wörld", 2))
	assert.Equal(t, "héllo wö"+TruncationMarker, Truncate("héllo wörld", 8))
	assert.Equal(t, "héllo wörld", Truncate("héllo wörld", 11))
	assert.Equal(t, "日本"+TruncationMarker, Truncate("日本語のテキスト", 2))
	for _, limit := range []int{1, 2, 3, 7} {
		assert.True(t, utf8.ValidString(Truncate("héllo wörld", limit)), "limit %d", limit)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "clean", sanitizeUTF8("clean"))
	assert.Equal(t, "caf� text", sanitizeUTF8("caf\xe9 text"))
	assert.True(t, utf8.ValidString(sanitizeUTF8("\xff\xfe")))
}

func TestDecodeTruncates(t *testing.T) {
	body, err := Decode([]byte(multipartFixture), "105", 5)
	require.NoError(t, err)
	assert.Equal(t, "Plain"+TruncationMarker, body.Body)
}

func TestExtractContent(t *testing.T) {
	content, err := ExtractContent([]byte(multipartFixture), "106")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report", content.Subject)
	assert.Equal(t, "Mon, 15 Apr 2024 10:30:00 +0000", content.DateHeader)
	assert.Equal(t, "Plain text body here.", strings.TrimSpace(content.Text))
	assert.Contains(t, content.HTML, "<p>HTML body here.</p>")
}

func TestAttachmentPayload(t *testing.T) {
	data, mimeType, err := AttachmentPayload([]byte(multipartFixture), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", mimeType)
}

func TestAttachmentPayloadNotFound(t *testing.T) {
	_, _, err := AttachmentPayload([]byte(multipartFixture), "missing.txt")
	assert.ErrorIs(t, err, ErrAttachmentNotFound)
}

func TestRawBodyFallback(t *testing.T) {
	assert.Equal(t, "body text", rawBodyFallback([]byte("Subject: x\r\n\r\nbody text")))
	assert.Equal(t, "body text", rawBodyFallback([]byte("Subject: x\n\nbody text\n")))
	assert.Equal(t, "", rawBodyFallback([]byte("Subject: x")))
}

func TestBareAddress(t *testing.T) {
	assert.Equal(t, "a@example.com", BareAddress("Alice <a@example.com>"))
	assert.Equal(t, "a@example.com", BareAddress("a@example.com"))
	assert.Equal(t, "not an address", BareAddress("not an address"))
}

func TestGuessMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", guessMIMEType("report.pdf"))
	assert.Equal(t, "application/octet-stream", guessMIMEType("blob.unknownext"))
}

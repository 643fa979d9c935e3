// Package message converts between raw RFC 822 octets and the structured
// records the rest of the gateway works with.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	netmail "net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
)

// TruncationMarker is appended to bodies cut at the truncation limit.
const TruncationMarker = "...[TRUNCATED]"

// ErrAttachmentNotFound reports that a named attachment part is absent.
var ErrAttachmentNotFound = errors.New("attachment not found")

// Metadata is an immutable snapshot of a message's headers.
//
// Attachments is populated only by full-content decoding; the header-only
// path always leaves it empty because attachment detection needs a body
// walk. Callers that need an authoritative manifest must fetch the body.
type Metadata struct {
	ID          string    `json:"email_id"`
	MessageID   string    `json:"message_id,omitempty"`
	Subject     string    `json:"subject"`
	Sender      string    `json:"from"`
	Recipients  []string  `json:"to"`
	Date        time.Time `json:"date"`
	Attachments []string  `json:"attachments"`
}

// Body is a full message: metadata plus text content, truncated to the
// caller's limit with TruncationMarker appended.
type Body struct {
	Metadata
	Body string `json:"body"`
}

// Content carries the untruncated plain and HTML bodies of a message,
// used by save-to-file where the original format must be preserved.
type Content struct {
	Subject    string
	Sender     string
	DateHeader string
	Text       string
	HTML       string
}

// parsed is the result of one full MIME walk.
type parsed struct {
	meta        *Metadata
	plain       string
	html        string
	calendar    string
	attachments []string
}

// Truncate cuts body at limit characters and appends the truncation marker.
// The limit counts characters, not bytes, so a cut never splits a rune. A
// body of exactly limit characters passes through unchanged.
func Truncate(body string, limit int) string {
	if limit <= 0 {
		return body
	}
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + TruncationMarker
}

// sanitizeUTF8 substitutes the replacement character for invalid byte
// sequences, the UTF-8 fallback for parts whose declared charset is not
// registered.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// Decode parses raw message octets into a Body. Body selection prefers the
// first text/plain part; with none present the first text/html part is
// converted to text. Date parse failures fall back to the current time so a
// bad Date header never fails the whole decode.
func Decode(raw []byte, id string, truncateLimit int) (*Body, error) {
	p, err := parseMessage(raw, id)
	if err != nil {
		return nil, err
	}

	body := p.plain
	if body == "" && p.html != "" {
		body = HTMLToText(p.html)
	}
	if body == "" {
		body = rawBodyFallback(raw)
	}
	if p.calendar != "" {
		if summary := calendarSummary(p.calendar); summary != "" {
			body = strings.TrimSpace(body + "\n\n" + summary)
		}
	}

	meta := *p.meta
	meta.Attachments = p.attachments
	return &Body{Metadata: meta, Body: Truncate(body, truncateLimit)}, nil
}

// DecodeHeaders parses raw header octets into Metadata without walking the
// body. Used by the pager, which fetches headers only.
func DecodeHeaders(raw []byte, id string) (*Metadata, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return nil, fmt.Errorf("parsing headers of %s: %w", id, err)
	}
	defer mr.Close()
	return metadataFromHeader(&mr.Header, id), nil
}

// ExtractContent parses raw message octets keeping the plain and HTML bodies
// separate and untruncated.
func ExtractContent(raw []byte, id string) (*Content, error) {
	p, err := parseMessage(raw, id)
	if err != nil {
		return nil, err
	}
	mr, _ := mail.CreateReader(bytes.NewReader(raw))
	dateHeader := ""
	if mr != nil {
		dateHeader = mr.Header.Get("Date")
		mr.Close()
	}
	return &Content{
		Subject:    p.meta.Subject,
		Sender:     p.meta.Sender,
		DateHeader: dateHeader,
		Text:       p.plain,
		HTML:       p.html,
	}, nil
}

// AttachmentPayload locates the attachment part named name and returns its
// decoded payload and MIME type.
func AttachmentPayload(raw []byte, name string) ([]byte, string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return nil, "", fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			break
		}
		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, _ := h.Filename()
		if filename != name {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, "", fmt.Errorf("reading attachment %s: %w", name, err)
		}
		mimeType, _, _ := h.ContentType()
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		return data, mimeType, nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrAttachmentNotFound, name)
}

func parseMessage(raw []byte, id string) (*parsed, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return nil, fmt.Errorf("parsing message %s: %w", id, err)
	}
	defer mr.Close()

	p := &parsed{meta: metadataFromHeader(&mr.Header, id)}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			slog.Warn("aborting MIME walk", "id", id, "err", err)
			break
		}
		if err != nil {
			// The part is still usable: its body is transfer-decoded but not
			// charset-converted. sanitizeUTF8 below handles the fallback.
			slog.Debug("unknown charset, decoding as UTF-8 with replacement", "id", id, "err", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && p.plain == "":
				p.plain = sanitizeUTF8(string(data))
			case strings.HasPrefix(contentType, "text/html") && p.html == "":
				p.html = sanitizeUTF8(string(data))
			case strings.HasPrefix(contentType, "text/calendar") && p.calendar == "":
				p.calendar = string(data)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if filename != "" {
				p.attachments = append(p.attachments, filename)
			}
		}
	}

	return p, nil
}

func metadataFromHeader(h *mail.Header, id string) *Metadata {
	meta := &Metadata{ID: id}

	if subject, err := h.Subject(); err == nil && subject != "" {
		meta.Subject = subject
	} else {
		meta.Subject = h.Get("Subject")
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		meta.Sender = formatAddrs(from)
	} else {
		meta.Sender = h.Get("From")
	}

	for _, key := range []string{"To", "Cc"} {
		if addrs, err := h.AddressList(key); err == nil {
			for _, a := range addrs {
				meta.Recipients = append(meta.Recipients, formatAddr(a))
			}
		}
	}

	if msgID, err := h.MessageID(); err == nil && msgID != "" {
		meta.MessageID = "<" + msgID + ">"
	}

	if date, err := h.Date(); err == nil && !date.IsZero() {
		meta.Date = date.UTC()
	} else {
		meta.Date = time.Now().UTC()
	}

	return meta
}

// formatAddr renders an address without RFC 2047 re-encoding.
// (net/mail.Address.String() re-encodes non-ASCII names, which we don't want.)
func formatAddr(a *mail.Address) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return a.Address
}

func formatAddrs(addrs []*mail.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = formatAddr(a)
	}
	return strings.Join(parts, ", ")
}

// rawBodyFallback extracts everything after the header block when MIME
// walking produced nothing usable.
func rawBodyFallback(raw []byte) string {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return strings.TrimSpace(string(raw[idx+4:]))
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return strings.TrimSpace(string(raw[idx+2:]))
	}
	return ""
}

// guessMIMEType maps a filename to a MIME type for outgoing attachments.
func guessMIMEType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// validateAttachment checks that an outgoing attachment path names a regular
// file.
func validateAttachment(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("attachment file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("attachment path is not a file: %s", path)
	}
	return nil
}

// parseAddrList parses display-form addresses ("Name <a@b>" or bare) into
// address structs, passing unparseable input through as a bare address.
func parseAddrList(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, s := range addrs {
		if a, err := netmail.ParseAddress(s); err == nil {
			out = append(out, &mail.Address{Name: a.Name, Address: a.Address})
		} else {
			out = append(out, &mail.Address{Address: s})
		}
	}
	return out
}

// BareAddress strips the display name from an address string.
func BareAddress(s string) string {
	if a, err := netmail.ParseAddress(s); err == nil {
		return a.Address
	}
	return s
}

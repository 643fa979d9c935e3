package message

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// Envelope describes an outgoing message. From is a display-form address;
// when empty the mailer fills in the account identity.
type Envelope struct {
	From       string
	Recipients []string
	Cc         []string
	Bcc        []string

	Subject string
	Body    string
	HTML    bool

	// Attachments are local file paths.
	Attachments []string

	// InReplyTo and References are message IDs in angle-bracket form; both
	// headers are emitted only when supplied.
	InReplyTo  string
	References string
}

// AllRecipients is the SMTP envelope recipient list: To, Cc and Bcc. Bcc
// addresses appear here and nowhere else.
func (e *Envelope) AllRecipients() []string {
	all := make([]string, 0, len(e.Recipients)+len(e.Cc)+len(e.Bcc))
	all = append(all, e.Recipients...)
	all = append(all, e.Cc...)
	return append(all, e.Bcc...)
}

// Encode builds the wire form of an envelope: single-part text when there
// are no attachments, multipart/mixed otherwise. Date and Message-ID are
// fixed here so the transmitted copy and any Sent-folder copy are
// byte-identical. Non-ASCII subjects and display names are RFC 2047 encoded
// by the header writer.
func Encode(env *Envelope) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(env.Subject)
	h.SetAddressList("From", parseAddrList([]string{env.From}))
	h.SetAddressList("To", parseAddrList(env.Recipients))
	if len(env.Cc) > 0 {
		h.SetAddressList("Cc", parseAddrList(env.Cc))
	}
	h.SetMsgIDList("Message-Id", []string{newMessageID(env.From)})
	if env.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{trimAngles(env.InReplyTo)})
	}
	if env.References != "" {
		var refs []string
		for _, ref := range strings.Fields(env.References) {
			refs = append(refs, trimAngles(ref))
		}
		h.SetMsgIDList("References", refs)
	}

	contentType := "text/plain"
	if env.HTML {
		contentType = "text/html"
	}

	var buf bytes.Buffer
	if len(env.Attachments) == 0 {
		h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("creating message writer: %w", err)
		}
		if _, err := io.WriteString(w, env.Body); err != nil {
			return nil, fmt.Errorf("writing body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing message writer: %w", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating multipart writer: %w", err)
	}

	var th mail.InlineHeader
	th.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(tw, env.Body); err != nil {
		return nil, fmt.Errorf("writing text part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing text part: %w", err)
	}

	for _, path := range env.Attachments {
		if err := attachFile(mw, path); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

func attachFile(mw *mail.Writer, path string) error {
	if err := validateAttachment(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading attachment %s: %w", path, err)
	}

	var ah mail.AttachmentHeader
	ah.SetFilename(filepath.Base(path))
	ah.SetContentType(guessMIMEType(path), nil)

	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("creating attachment part for %s: %w", path, err)
	}
	if _, err := aw.Write(data); err != nil {
		return fmt.Errorf("writing attachment %s: %w", path, err)
	}
	if err := aw.Close(); err != nil {
		return fmt.Errorf("closing attachment part for %s: %w", path, err)
	}
	return nil
}

// newMessageID derives a fresh message ID at the sender's domain.
func newMessageID(from string) string {
	domain := "localhost"
	addr := BareAddress(from)
	if i := strings.LastIndex(addr, "@"); i >= 0 && i+1 < len(addr) {
		domain = addr[i+1:]
	}
	return fmt.Sprintf("%s@%s", uuid.NewString(), domain)
}

func trimAngles(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "<"), ">")
}

package mailbox

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/emersion/go-imap/v2"

	"github.com/smcmanigal/mcp-email-server/internal/message"
)

// ErrNotFound reports that no fetch shape produced message content for a UID.
var ErrNotFound = errors.New("message not found")

// minMessageSize is the content heuristic: responses at or below this size
// are protocol metadata, not a message.
const minMessageSize = 100

// fetchShapes are the body-section layouts tried in order for full-content
// retrieval. Servers disagree on how large messages are framed, so after the
// non-marking form we fall back to a marking fetch and finally to fetching
// header and text as separate sections and rejoining them.
func fetchShapes() [][]*imap.FetchItemBodySection {
	return [][]*imap.FetchItemBodySection{
		{{Peek: true}},
		{{}},
		{
			{Specifier: imap.PartSpecifierHeader, Peek: true},
			{Specifier: imap.PartSpecifierText, Peek: true},
		},
	}
}

// FetchRaw retrieves the full raw octets of one message, trying each fetch
// shape until one yields recognizable content.
func (s *Session) FetchRaw(id string) ([]byte, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	for _, shape := range fetchShapes() {
		raw, err := s.fetchSections(uid, shape)
		if err != nil {
			s.log.Debug("fetch shape failed", "uid", uid, "err", err)
			continue
		}
		if len(raw) > minMessageSize {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: UID %s", ErrNotFound, id)
}

func (s *Session) fetchSections(uid imap.UID, sections []*imap.FetchItemBodySection) ([]byte, error) {
	msgs, err := s.client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: sections,
	}).Collect()
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}

	var buf bytes.Buffer
	for _, section := range sections {
		buf.Write(msgs[0].FindBodySection(section))
	}
	return buf.Bytes(), nil
}

// FetchBody retrieves and decodes one message, truncating the body at
// truncateLimit characters.
func (s *Session) FetchBody(id string, truncateLimit int) (*message.Body, error) {
	raw, err := s.FetchRaw(id)
	if err != nil {
		return nil, err
	}
	return message.Decode(raw, id, truncateLimit)
}

// FetchAttachment retrieves the named attachment of one message and returns
// its decoded payload and MIME type.
func (s *Session) FetchAttachment(id, name string) ([]byte, string, error) {
	raw, err := s.FetchRaw(id)
	if err != nil {
		return nil, "", err
	}
	return message.AttachmentPayload(raw, name)
}

// Package gateway exposes the mailbox operations consumed by the command
// surface: listing, fetching, sending, deleting, moving, flagging and
// saving mail for one configured account.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/smcmanigal/mcp-email-server/internal/config"
	"github.com/smcmanigal/mcp-email-server/internal/mailbox"
	"github.com/smcmanigal/mcp-email-server/internal/message"
	"github.com/smcmanigal/mcp-email-server/internal/sender"
)

// ErrAttachmentDownloadDisabled is returned before any network call when the
// account has attachment downloads switched off.
var ErrAttachmentDownloadDisabled = errors.New("attachment download is disabled for this account")

// Order selects pagination direction by message date.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// PageResult is one page of metadata plus the size of the full filtered set.
type PageResult struct {
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Total    int                 `json:"total"`
	Emails   []*message.Metadata `json:"emails"`
}

// ContentResult is the outcome of a batch body fetch, reporting partial
// success explicitly.
type ContentResult struct {
	Emails         []*message.Body `json:"emails"`
	RequestedCount int             `json:"requested_count"`
	RetrievedCount int             `json:"retrieved_count"`
	FailedIDs      []string        `json:"failed_ids"`
}

// AttachmentResult describes a saved attachment download.
type AttachmentResult struct {
	EmailID        string `json:"email_id"`
	AttachmentName string `json:"attachment_name"`
	MimeType       string `json:"mime_type"`
	Size           int    `json:"size"`
	SavedPath      string `json:"saved_path"`
}

// SaveFormat selects the body rendering for SaveToFile.
type SaveFormat string

const (
	SaveHTML     SaveFormat = "html"
	SaveMarkdown SaveFormat = "markdown"
)

// SaveResult describes a message written to disk.
type SaveResult struct {
	EmailID       string `json:"email_id"`
	FilePath      string `json:"file_path"`
	ContentLength int    `json:"content_length"`
	Format        string `json:"output_format"`
}

// Gateway performs operations for one account. Every method opens its own
// connection; concurrent calls are naturally isolated.
type Gateway struct {
	account *config.Account
}

// New builds a Gateway for the account.
func New(account *config.Account) *Gateway {
	return &Gateway{account: account}
}

func (g *Gateway) truncateLimit(override int) int {
	if override > 0 {
		return override
	}
	return g.account.MaxBodyLength
}

func defaultMailbox(mbox string) string {
	if mbox == "" {
		return "INBOX"
	}
	return mbox
}

// ListMetadata returns one date-ordered page of metadata for the filtered
// mailbox. Total reflects the full filtered set regardless of pagination.
func (g *Gateway) ListMetadata(filter mailbox.Filter, page, pageSize int, order Order, mbox string) (*PageResult, error) {
	result := &PageResult{Page: page, PageSize: pageSize, Emails: []*message.Metadata{}}
	err := mailbox.WithSession(g.account.Incoming, defaultMailbox(mbox), func(s *mailbox.Session) error {
		emails, err := s.PageMetadata(filter, page, pageSize, order == OrderAsc)
		if err != nil {
			return err
		}
		if emails != nil {
			result.Emails = emails
		}
		result.Total, err = s.Count(filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the filtered mailbox size without fetching anything else.
func (g *Gateway) Count(filter mailbox.Filter, mbox string) (int, error) {
	var total int
	err := mailbox.WithSession(g.account.Incoming, defaultMailbox(mbox), func(s *mailbox.Session) error {
		var err error
		total, err = s.Count(filter)
		return err
	})
	return total, err
}

// FetchContent retrieves full bodies for the given IDs. Per-item failures
// are collected into FailedIDs, never aborting the remaining items.
func (g *Gateway) FetchContent(ids []string, mbox string, truncateLimit int) (*ContentResult, error) {
	result := &ContentResult{
		Emails:         []*message.Body{},
		RequestedCount: len(ids),
		FailedIDs:      []string{},
	}
	limit := g.truncateLimit(truncateLimit)
	err := mailbox.WithSession(g.account.Incoming, defaultMailbox(mbox), func(s *mailbox.Session) error {
		for _, id := range ids {
			body, err := s.FetchBody(id, limit)
			if err != nil {
				slog.Error("failed to retrieve email", "uid", id, "err", err)
				result.FailedIDs = append(result.FailedIDs, id)
				continue
			}
			result.Emails = append(result.Emails, body)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.RetrievedCount = len(result.Emails)
	return result, nil
}

// Send submits the envelope over SMTP, then archives a copy into the Sent
// folder when the account asks for it. Archival failure is logged only.
func (g *Gateway) Send(env *message.Envelope) error {
	m := sender.New(g.account)
	wire, err := m.Send(env)
	if err != nil {
		return err
	}
	if g.account.SaveToSent {
		if !sender.AppendToSent(wire, g.account.Incoming, g.account.SentFolder) {
			slog.Warn("sent email was not archived", "account", g.account.Name)
		}
	}
	return nil
}

// Delete removes the given messages, reporting per-ID outcomes.
func (g *Gateway) Delete(ids []string, mbox string) (deleted, failed []string, err error) {
	err = mailbox.WithSession(g.account.Incoming, defaultMailbox(mbox), func(s *mailbox.Session) error {
		deleted, failed = s.Delete(ids)
		return nil
	})
	return deleted, failed, err
}

// ListFolders lists mailboxes matching pattern.
func (g *Gateway) ListFolders(pattern string) ([]mailbox.Folder, error) {
	var folders []mailbox.Folder
	err := mailbox.WithSession(g.account.Incoming, "", func(s *mailbox.Session) error {
		var err error
		folders, err = s.ListFolders(pattern)
		return err
	})
	return folders, err
}

// MoveToFolder moves messages from sourceMailbox into target.
func (g *Gateway) MoveToFolder(ids []string, target, sourceMailbox string, createIfMissing bool) (*mailbox.MoveResult, error) {
	var result mailbox.MoveResult
	err := mailbox.WithSession(g.account.Incoming, defaultMailbox(sourceMailbox), func(s *mailbox.Session) error {
		result = s.MoveToFolder(ids, target, createIfMissing)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ModifyFlags applies a flag mutation across the given messages. The result
// map covers every requested ID exactly once.
func (g *Gateway) ModifyFlags(ids, flags []string, op mailbox.FlagOp, silent bool) (map[string]bool, error) {
	if len(ids) == 0 || len(flags) == 0 {
		return map[string]bool{}, nil
	}
	normalized := mailbox.NormalizeFlags(flags)
	var results map[string]bool
	err := mailbox.WithSession(g.account.Incoming, "INBOX", func(s *mailbox.Session) error {
		var err error
		results, err = s.ModifyFlags(ids, normalized, op, silent)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DownloadAttachment saves the named attachment of a message to savePath.
// The account policy is checked before any network call.
func (g *Gateway) DownloadAttachment(id, name, savePath, mbox string) (*AttachmentResult, error) {
	if !g.account.AllowAttachments {
		return nil, ErrAttachmentDownloadDisabled
	}

	var data []byte
	var mimeType string
	err := mailbox.WithSession(g.account.Incoming, defaultMailbox(mbox), func(s *mailbox.Session) error {
		var err error
		data, mimeType, err = s.FetchAttachment(id, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", savePath, err)
	}
	if err := os.WriteFile(savePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing attachment to %s: %w", savePath, err)
	}
	abs, err := filepath.Abs(savePath)
	if err != nil {
		abs = savePath
	}
	slog.Info("attachment saved", "name", name, "path", abs)

	return &AttachmentResult{
		EmailID:        id,
		AttachmentName: name,
		MimeType:       mimeType,
		Size:           len(data),
		SavedPath:      abs,
	}, nil
}

// SaveToFile writes one complete message to disk without truncation, either
// as the original HTML or converted to Markdown.
func (g *Gateway) SaveToFile(id, path string, format SaveFormat, includeHeaders bool, mbox string) (*SaveResult, error) {
	var raw []byte
	err := mailbox.WithSession(g.account.Incoming, defaultMailbox(mbox), func(s *mailbox.Session) error {
		var err error
		raw, err = s.FetchRaw(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	content, err := message.ExtractContent(raw, id)
	if err != nil {
		return nil, err
	}

	rendered, err := renderSaveContent(content, id, format, includeHeaders)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return nil, fmt.Errorf("writing email to %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &SaveResult{
		EmailID:       id,
		FilePath:      abs,
		ContentLength: len(rendered),
		Format:        string(format),
	}, nil
}

func renderSaveContent(content *message.Content, id string, format SaveFormat, includeHeaders bool) (string, error) {
	var body string
	switch format {
	case SaveHTML:
		body = content.HTML
		if body == "" {
			body = content.Text
		}
	case SaveMarkdown:
		if content.HTML != "" {
			md, err := htmltomarkdown.ConvertString(content.HTML)
			if err != nil {
				return "", fmt.Errorf("converting HTML to markdown: %w", err)
			}
			body = md
		} else {
			body = content.Text
		}
	default:
		return "", fmt.Errorf("invalid output format: %q", format)
	}

	if !includeHeaders {
		return body, nil
	}
	header := fmt.Sprintf("Subject: %s\nFrom: %s\nDate: %s\nEmail-ID: %s\n\n---\n\n",
		content.Subject, content.Sender, content.DateHeader, id)
	return header + body, nil
}

// Package mailbox implements the IMAP interaction layer: search criteria,
// single-session lifecycle, paged metadata retrieval, content fetches and
// mutations. Every logical operation opens its own session and tears it
// down; nothing is pooled or cached across calls.
package mailbox

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/smcmanigal/mcp-email-server/internal/config"
)

const (
	clientName    = "mcp-email-server"
	clientVersion = "1.0.0"
)

// Session is one authenticated IMAP connection with an optional selected
// mailbox. It is not safe for use after Close.
type Session struct {
	client *imapclient.Client
	cfg    config.ServerConfig
	log    *slog.Logger
}

// Open dials, authenticates, announces the client and selects mailbox.
// An empty mailbox skips selection (folder listing and APPEND work without
// one). SELECT failure is fatal; the connection is torn down before return.
func Open(cfg config.ServerConfig, mailbox string) (*Session, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s failed: %w", cfg.Addr(), err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("login failed: %w", err)
	}

	s := &Session{
		client: client,
		cfg:    cfg,
		log:    slog.With("server", cfg),
	}
	s.announce()

	if mailbox != "" {
		if err := s.Select(mailbox); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// WithSession runs fn inside a scoped session, guaranteeing logout on every
// exit path. Logout errors are swallowed so they never mask fn's error.
func WithSession(cfg config.ServerConfig, mailbox string, fn func(*Session) error) error {
	s, err := Open(cfg, mailbox)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func dial(cfg config.ServerConfig) (*imapclient.Client, error) {
	var opts *imapclient.Options
	if cfg.SkipVerify {
		opts = &imapclient.Options{TLSConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	switch cfg.TLS {
	case config.TLSStartTLS:
		return imapclient.DialStartTLS(cfg.Addr(), opts)
	case config.TLSNone:
		return imapclient.DialInsecure(cfg.Addr(), opts)
	default:
		return imapclient.DialTLS(cfg.Addr(), opts)
	}
}

// announce sends the ID command. Strict servers (163.com and friends) reject
// the full form, so a minimal form is retried once; total failure is logged
// and swallowed because identification is purely advisory.
func (s *Session) announce() {
	full := &imap.IDData{Name: clientName, Version: clientVersion}
	if _, err := s.client.ID(full).Wait(); err == nil {
		return
	}
	if _, err := s.client.ID(&imap.IDData{Name: clientName}).Wait(); err != nil {
		s.log.Warn("IMAP ID command failed", "err", err)
	}
}

// Select makes mailbox the session's current mailbox.
func (s *Session) Select(mailbox string) error {
	if _, err := s.client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("SELECT %s failed: %w", Quote(mailbox), err)
	}
	return nil
}

// Close logs out and releases the connection. Logout errors are logged,
// never propagated.
func (s *Session) Close() {
	if err := s.client.Logout().Wait(); err != nil {
		s.log.Debug("error during logout", "err", err)
	}
	_ = s.client.Close()
}

// Append stores raw message octets into mailbox with the given flags.
func (s *Session) Append(mailbox string, raw []byte, flags ...imap.Flag) error {
	var opts *imap.AppendOptions
	if len(flags) > 0 {
		opts = &imap.AppendOptions{Flags: flags}
	}
	cmd := s.client.Append(mailbox, int64(len(raw)), opts)
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("APPEND to %s failed: %w", Quote(mailbox), err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("APPEND to %s failed: %w", Quote(mailbox), err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("APPEND to %s failed: %w", Quote(mailbox), err)
	}
	return nil
}

// parseUID converts the decimal string form used at the API boundary. UIDs
// are never renumbered or reused by this layer.
func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message ID %q: %w", id, err)
	}
	return imap.UID(n), nil
}

func formatUID(uid imap.UID) string {
	return strconv.FormatUint(uint64(uid), 10)
}

// Package sender submits outgoing mail over SMTP and archives a copy into
// the IMAP Sent folder on a best-effort basis.
package sender

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/wneessen/go-mail/smtp"

	"github.com/smcmanigal/mcp-email-server/internal/config"
	"github.com/smcmanigal/mcp-email-server/internal/message"
)

// Mailer sends mail for one account. Each Send opens and closes its own
// SMTP connection.
type Mailer struct {
	cfg    config.ServerConfig
	sender string
}

// New builds a Mailer from the account's outgoing server and identity.
func New(account *config.Account) *Mailer {
	return &Mailer{cfg: account.Outgoing, sender: account.Sender()}
}

// Send encodes the envelope and submits it. The returned wire bytes are the
// exact transmitted octets, reusable for Sent-folder archival so both copies
// carry the same Date and Message-ID.
func (m *Mailer) Send(env *message.Envelope) ([]byte, error) {
	if env.From == "" {
		env.From = m.sender
	}
	wire, err := message.Encode(env)
	if err != nil {
		return nil, fmt.Errorf("building message: %w", err)
	}

	rcpts := env.AllRecipients()
	if len(rcpts) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	if err := m.submit(message.BareAddress(env.From), rcpts, wire); err != nil {
		return nil, err
	}
	return wire, nil
}

func (m *Mailer) submit(from string, rcpts []string, wire []byte) error {
	tlsConfig := &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: m.cfg.SkipVerify,
	}

	var conn net.Conn
	var err error
	if m.cfg.TLS == config.TLSImplicit {
		conn, err = tls.Dial("tcp", m.cfg.Addr(), tlsConfig)
	} else {
		conn, err = net.Dial("tcp", m.cfg.Addr())
	}
	if err != nil {
		return fmt.Errorf("connect to %s failed: %w", m.cfg.Addr(), err)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("SMTP handshake failed: %w", err)
	}
	defer client.Close()

	if m.cfg.TLS == config.TLSStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if m.cfg.Username != "" {
		if err := client.Auth(m.auth(client)); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(message.BareAddress(rcpt)); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(wire); err != nil {
		return fmt.Errorf("writing message data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message data: %w", err)
	}
	return client.Quit()
}

// auth picks PLAIN when the server advertises it and falls back to the
// LOGIN handler otherwise.
func (m *Mailer) auth(client *smtp.Client) smtp.Auth {
	if ok, mechanisms := client.Extension("AUTH"); ok && strings.Contains(mechanisms, "PLAIN") {
		return smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host, false)
	}
	return LoginAuth(m.cfg.Username, m.cfg.Password)
}

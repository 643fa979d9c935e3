// Package config holds account settings for the gateway: one incoming (IMAP)
// and one outgoing (SMTP) server per account, loaded from a YAML file.
// Credentials never appear in logs or in display output.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// TLSMode selects how the connection to a mail server is secured.
type TLSMode string

const (
	// TLSImplicit wraps the whole connection in TLS from the first byte.
	TLSImplicit TLSMode = "tls"
	// TLSStartTLS connects in cleartext and upgrades via STARTTLS.
	TLSStartTLS TLSMode = "starttls"
	// TLSNone uses a cleartext connection.
	TLSNone TLSMode = "none"
)

// DefaultMaxBodyLength is the fallback body-truncation limit in characters.
const DefaultMaxBodyLength = 20000

// ServerConfig describes one mail server endpoint. It is immutable once
// loaded; sessions receive it by value.
type ServerConfig struct {
	Host       string  `mapstructure:"host" yaml:"host"`
	Port       int     `mapstructure:"port" yaml:"port"`
	Username   string  `mapstructure:"username" yaml:"username"`
	Password   string  `mapstructure:"password" yaml:"password"`
	TLS        TLSMode `mapstructure:"tls" yaml:"tls"`
	SkipVerify bool    `mapstructure:"skip_verify" yaml:"skip_verify"`
}

// Addr returns the host:port dial address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogValue keeps credentials out of structured logs.
func (c ServerConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("username", c.Username),
		slog.String("tls", string(c.TLS)),
	)
}

// Masked returns a copy safe for display: the password is replaced with a
// fixed-width placeholder regardless of its length.
func (c ServerConfig) Masked() ServerConfig {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// Account binds an address identity to its incoming and outgoing servers.
type Account struct {
	Name     string       `mapstructure:"name" yaml:"name"`
	Email    string       `mapstructure:"email" yaml:"email"`
	FullName string       `mapstructure:"full_name" yaml:"full_name"`
	Incoming ServerConfig `mapstructure:"incoming" yaml:"incoming"`
	Outgoing ServerConfig `mapstructure:"outgoing" yaml:"outgoing"`

	// SaveToSent enables best-effort archival of outgoing mail.
	SaveToSent bool `mapstructure:"save_to_sent" yaml:"save_to_sent"`
	// SentFolder overrides Sent-folder discovery when set.
	SentFolder string `mapstructure:"sent_folder" yaml:"sent_folder"`
	// AllowAttachments gates attachment downloads for this account.
	AllowAttachments bool `mapstructure:"allow_attachments" yaml:"allow_attachments"`
	// MaxBodyLength is the body-truncation limit for fetches.
	MaxBodyLength int `mapstructure:"max_body_length" yaml:"max_body_length"`
}

// Sender returns the display From for outgoing mail.
func (a Account) Sender() string {
	if a.FullName == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.FullName, a.Email)
}

// Masked returns a copy of the account with credentials hidden.
func (a Account) Masked() Account {
	a.Incoming = a.Incoming.Masked()
	a.Outgoing = a.Outgoing.Masked()
	return a
}

// Settings is the top-level configuration file content.
type Settings struct {
	Accounts []Account `mapstructure:"accounts" yaml:"accounts"`
}

// DefaultPath returns ~/.config/mcp-email-server/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mcp-email-server", "config.yaml")
}

// Load reads settings from a YAML file. A missing file yields empty settings
// rather than an error so first-run account setup works.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return &Settings{}, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range settings.Accounts {
		a := &settings.Accounts[i]
		if a.MaxBodyLength <= 0 {
			a.MaxBodyLength = DefaultMaxBodyLength
		}
		// Viper unmarshals missing bools as false; treat unset as true for
		// the two opt-out toggles.
		if !a.SaveToSent && !v.IsSet(fmt.Sprintf("accounts.%d.save_to_sent", i)) {
			a.SaveToSent = true
		}
		if !a.AllowAttachments && !v.IsSet(fmt.Sprintf("accounts.%d.allow_attachments", i)) {
			a.AllowAttachments = true
		}
		if a.Incoming.TLS == "" {
			a.Incoming.TLS = TLSImplicit
		}
		if a.Outgoing.TLS == "" {
			a.Outgoing.TLS = TLSImplicit
		}
	}

	return settings, nil
}

// Save writes settings to a YAML file, creating parent directories if needed.
func Save(path string, settings *Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("accounts", settings.Accounts)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Account looks up an account by name. An empty name resolves to the only
// configured account, if there is exactly one.
func (s *Settings) Account(name string) (*Account, error) {
	if name == "" {
		if len(s.Accounts) == 1 {
			return &s.Accounts[0], nil
		}
		return nil, fmt.Errorf("account name required (%d accounts configured)", len(s.Accounts))
	}
	for i := range s.Accounts {
		if s.Accounts[i].Name == name {
			return &s.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("no such account: %s", name)
}

// Remove deletes an account by name. It reports whether one was removed.
func (s *Settings) Remove(name string) bool {
	for i := range s.Accounts {
		if s.Accounts[i].Name == name {
			s.Accounts = append(s.Accounts[:i], s.Accounts[i+1:]...)
			return true
		}
	}
	return false
}

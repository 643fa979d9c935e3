// Command mcp-email-server exposes mailbox operations for configured
// accounts: searching, reading, sending, moving, flagging, deleting and
// saving mail.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/smcmanigal/mcp-email-server/internal/config"
	"github.com/smcmanigal/mcp-email-server/internal/gateway"
	"github.com/smcmanigal/mcp-email-server/internal/mailbox"
	"github.com/smcmanigal/mcp-email-server/internal/message"
)

func main() {
	app := &cli.App{
		Name:  "mcp-email-server",
		Usage: "IMAP/SMTP email gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: config.DefaultPath(), Usage: "path to the config file"},
			&cli.StringFlag{Name: "account", Usage: "account name (optional when only one is configured)"},
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			accountsCommand(),
			foldersCommand(),
			listCommand(),
			countCommand(),
			readCommand(),
			sendCommand(),
			deleteCommand(),
			moveCommand(),
			flagsCommand(),
			attachmentCommand(),
			saveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openGateway(c *cli.Context) (*gateway.Gateway, error) {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	account, err := settings.Account(c.String("account"))
	if err != nil {
		return nil, err
	}
	return gateway.New(account), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// filterFlags are shared by list and count.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "mailbox", Value: "INBOX", Usage: "mailbox to search"},
		&cli.TimestampFlag{Name: "before", Layout: "2006-01-02", Usage: "messages dated before this day"},
		&cli.TimestampFlag{Name: "since", Layout: "2006-01-02", Usage: "messages dated on or after this day"},
		&cli.StringFlag{Name: "subject", Usage: "substring match on Subject"},
		&cli.StringFlag{Name: "from", Usage: "substring match on From"},
		&cli.StringFlag{Name: "to", Usage: "substring match on To"},
		&cli.StringFlag{Name: "body", Usage: "search in message body"},
		&cli.StringFlag{Name: "text", Usage: "search in headers and body"},
		&cli.BoolFlag{Name: "seen", Usage: "only read messages"},
		&cli.BoolFlag{Name: "unseen", Usage: "only unread messages"},
		&cli.BoolFlag{Name: "flagged", Usage: "only flagged messages"},
		&cli.BoolFlag{Name: "unflagged", Usage: "only unflagged messages"},
		&cli.BoolFlag{Name: "answered", Usage: "only answered messages"},
		&cli.BoolFlag{Name: "unanswered", Usage: "only unanswered messages"},
	}
}

func filterFromFlags(c *cli.Context) mailbox.Filter {
	filter := mailbox.Filter{
		Subject: c.String("subject"),
		Body:    c.String("body"),
		Text:    c.String("text"),
		From:    c.String("from"),
		To:      c.String("to"),
	}
	if t := c.Timestamp("before"); t != nil && !t.IsZero() {
		filter.Before = t
	}
	if t := c.Timestamp("since"); t != nil && !t.IsZero() {
		filter.Since = t
	}
	filter.Seen = triState(c, "seen", "unseen")
	filter.Flagged = triState(c, "flagged", "unflagged")
	filter.Answered = triState(c, "answered", "unanswered")
	return filter
}

// triState maps a pair of opposing bool flags onto the filter's three-state
// form; neither flag set means "don't care".
func triState(c *cli.Context, yes, no string) *bool {
	v := true
	switch {
	case c.Bool(yes):
		return &v
	case c.Bool(no):
		v = false
		return &v
	}
	return nil
}

func accountsCommand() *cli.Command {
	serverFlags := func(prefix string, defaultPort int) []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: prefix + "-host", Required: true},
			&cli.IntFlag{Name: prefix + "-port", Value: defaultPort},
			&cli.StringFlag{Name: prefix + "-user"},
			&cli.StringFlag{Name: prefix + "-password"},
			&cli.StringFlag{Name: prefix + "-tls", Value: string(config.TLSImplicit), Usage: "tls, starttls or none"},
			&cli.BoolFlag{Name: prefix + "-skip-verify", Usage: "skip TLS certificate verification"},
		}
	}
	serverFromFlags := func(c *cli.Context, prefix, fallbackUser, fallbackPassword string) config.ServerConfig {
		user := c.String(prefix + "-user")
		if user == "" {
			user = fallbackUser
		}
		password := c.String(prefix + "-password")
		if password == "" {
			password = fallbackPassword
		}
		return config.ServerConfig{
			Host:       c.String(prefix + "-host"),
			Port:       c.Int(prefix + "-port"),
			Username:   user,
			Password:   password,
			TLS:        config.TLSMode(c.String(prefix + "-tls")),
			SkipVerify: c.Bool(prefix + "-skip-verify"),
		}
	}

	return &cli.Command{
		Name:  "accounts",
		Usage: "manage configured accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "add or replace an account",
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "full-name"},
					&cli.StringFlag{Name: "user", Usage: "credentials for both servers unless overridden"},
					&cli.StringFlag{Name: "password"},
					&cli.StringFlag{Name: "sent-folder", Usage: "override Sent-folder discovery"},
					&cli.BoolFlag{Name: "no-save-to-sent", Usage: "skip Sent-folder archival"},
				}, serverFlags("imap", 993)...), serverFlags("smtp", 465)...),
				Action: func(c *cli.Context) error {
					path := c.String("config")
					settings, err := config.Load(path)
					if err != nil {
						return err
					}
					account := config.Account{
						Name:             c.String("name"),
						Email:            c.String("email"),
						FullName:         c.String("full-name"),
						Incoming:         serverFromFlags(c, "imap", c.String("user"), c.String("password")),
						Outgoing:         serverFromFlags(c, "smtp", c.String("user"), c.String("password")),
						SaveToSent:       !c.Bool("no-save-to-sent"),
						SentFolder:       c.String("sent-folder"),
						AllowAttachments: true,
						MaxBodyLength:    config.DefaultMaxBodyLength,
					}
					settings.Remove(account.Name)
					settings.Accounts = append(settings.Accounts, account)
					if err := config.Save(path, settings); err != nil {
						return err
					}
					return printJSON(account.Masked())
				},
			},
			{
				Name:  "list",
				Usage: "list accounts with credentials masked",
				Action: func(c *cli.Context) error {
					settings, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					masked := make([]config.Account, len(settings.Accounts))
					for i, a := range settings.Accounts {
						masked[i] = a.Masked()
					}
					return printJSON(masked)
				},
			},
			{
				Name:      "remove",
				Usage:     "remove an account by name",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					settings, err := config.Load(path)
					if err != nil {
						return err
					}
					name := c.Args().First()
					if !settings.Remove(name) {
						return fmt.Errorf("no such account: %s", name)
					}
					return config.Save(path, settings)
				},
			},
		},
	}
}

func foldersCommand() *cli.Command {
	return &cli.Command{
		Name:  "folders",
		Usage: "list mailbox folders",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pattern", Value: "*"},
		},
		Action: func(c *cli.Context) error {
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			folders, err := g.ListFolders(c.String("pattern"))
			if err != nil {
				return err
			}
			return printJSON(folders)
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list message metadata, newest first",
		Flags: append(filterFlags(),
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Value: 10},
			&cli.StringFlag{Name: "order", Value: string(gateway.OrderDesc), Usage: "asc or desc"},
		),
		Action: func(c *cli.Context) error {
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			page, err := g.ListMetadata(filterFromFlags(c),
				c.Int("page"), c.Int("page-size"),
				gateway.Order(c.String("order")), c.String("mailbox"))
			if err != nil {
				return err
			}
			return printJSON(page)
		},
	}
}

func countCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "count matching messages",
		Flags: filterFlags(),
		Action: func(c *cli.Context) error {
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			total, err := g.Count(filterFromFlags(c), c.String("mailbox"))
			if err != nil {
				return err
			}
			return printJSON(map[string]int{"total": total})
		},
	}
}

func readCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "fetch full message content by UID",
		ArgsUsage: "UID...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mailbox", Value: "INBOX"},
			&cli.IntFlag{Name: "max-length", Usage: "body truncation limit in characters"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one UID is required")
			}
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			result, err := g.FetchContent(c.Args().Slice(), c.String("mailbox"), c.Int("max-length"))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "send an email",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "to", Required: true},
			&cli.StringSliceFlag{Name: "cc"},
			&cli.StringSliceFlag{Name: "bcc"},
			&cli.StringFlag{Name: "subject", Required: true},
			&cli.StringFlag{Name: "body"},
			&cli.StringFlag{Name: "body-file", Usage: "read the body from a file"},
			&cli.BoolFlag{Name: "html", Usage: "send the body as text/html"},
			&cli.StringSliceFlag{Name: "attach", Usage: "attachment file path"},
			&cli.StringFlag{Name: "in-reply-to", Usage: "Message-ID being replied to"},
			&cli.StringFlag{Name: "references", Usage: "thread References header value"},
		},
		Action: func(c *cli.Context) error {
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			body := c.String("body")
			if path := c.String("body-file"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading body file: %w", err)
				}
				body = string(data)
			}
			env := &message.Envelope{
				Recipients:  c.StringSlice("to"),
				Cc:          c.StringSlice("cc"),
				Bcc:         c.StringSlice("bcc"),
				Subject:     c.String("subject"),
				Body:        body,
				HTML:        c.Bool("html"),
				Attachments: c.StringSlice("attach"),
				InReplyTo:   c.String("in-reply-to"),
				References:  c.String("references"),
			}
			if err := g.Send(env); err != nil {
				return err
			}
			return printJSON(map[string]string{"status": "sent", "at": time.Now().UTC().Format(time.RFC3339)})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete messages by UID",
		ArgsUsage: "UID...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mailbox", Value: "INBOX"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one UID is required")
			}
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			deleted, failed, err := g.Delete(c.Args().Slice(), c.String("mailbox"))
			if err != nil {
				return err
			}
			return printJSON(map[string][]string{"deleted": deleted, "failed": failed})
		},
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "move messages to a folder",
		ArgsUsage: "UID...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Required: true},
			&cli.StringFlag{Name: "source", Value: "INBOX"},
			&cli.BoolFlag{Name: "no-create", Usage: "fail instead of creating a missing target folder"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one UID is required")
			}
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			result, err := g.MoveToFolder(c.Args().Slice(), c.String("target"), c.String("source"), !c.Bool("no-create"))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func flagsCommand() *cli.Command {
	return &cli.Command{
		Name:      "flags",
		Usage:     "add, remove or replace message flags",
		ArgsUsage: "UID...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "op", Value: string(mailbox.FlagOpAdd), Usage: "add, remove or replace"},
			&cli.StringSliceFlag{Name: "flag", Required: true, Usage: `flag name, e.g. Seen or \Flagged`},
			&cli.BoolFlag{Name: "silent", Usage: "suppress untagged FETCH responses"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one UID is required")
			}
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			results, err := g.ModifyFlags(c.Args().Slice(), c.StringSlice("flag"),
				mailbox.FlagOp(c.String("op")), c.Bool("silent"))
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func attachmentCommand() *cli.Command {
	return &cli.Command{
		Name:  "attachment",
		Usage: "download an attachment",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "message UID"},
			&cli.StringFlag{Name: "name", Required: true, Usage: "attachment filename"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "path to save the attachment"},
			&cli.StringFlag{Name: "mailbox", Value: "INBOX"},
		},
		Action: func(c *cli.Context) error {
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			result, err := g.DownloadAttachment(c.String("id"), c.String("name"), c.String("out"), c.String("mailbox"))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "save a complete message to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "message UID"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output file path"},
			&cli.StringFlag{Name: "format", Value: string(gateway.SaveMarkdown), Usage: "html or markdown"},
			&cli.BoolFlag{Name: "no-headers", Usage: "omit the header block"},
			&cli.StringFlag{Name: "mailbox", Value: "INBOX"},
		},
		Action: func(c *cli.Context) error {
			g, err := openGateway(c)
			if err != nil {
				return err
			}
			result, err := g.SaveToFile(c.String("id"), c.String("out"),
				gateway.SaveFormat(c.String("format")), !c.Bool("no-headers"), c.String("mailbox"))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

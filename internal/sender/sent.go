package sender

import (
	"log/slog"

	"github.com/emersion/go-imap/v2"

	"github.com/smcmanigal/mcp-email-server/internal/config"
	"github.com/smcmanigal/mcp-email-server/internal/mailbox"
)

// conventionalSentFolders are tried, in order, when no folder advertises the
// \Sent attribute. The list covers the common provider layouts.
var conventionalSentFolders = []string{
	"Sent",
	"INBOX.Sent",
	"Sent Items",
	"Sent Mail",
	"[Gmail]/Sent Mail",
	"INBOX/Sent",
}

// AppendToSent archives the transmitted wire bytes into the account's Sent
// folder over IMAP, marking the copy \Seen. Discovery order: the folder
// carrying the \Sent attribute, then the caller override, then the
// conventional names. Best-effort: the result is a boolean and every failure
// is logged, never raised, so archival can never fail the send itself.
func AppendToSent(wire []byte, incoming config.ServerConfig, overrideFolder string) bool {
	saved := false
	err := mailbox.WithSession(incoming, "", func(s *mailbox.Session) error {
		for _, folder := range sentCandidates(discoverSentFolder(s), overrideFolder) {
			if err := s.Select(folder); err != nil {
				slog.Debug("sent folder not selectable", "folder", folder, "err", err)
				continue
			}
			if err := s.Append(folder, wire, imap.FlagSeen); err != nil {
				slog.Debug("append to sent folder failed", "folder", folder, "err", err)
				continue
			}
			slog.Info("saved sent email", "folder", folder)
			saved = true
			return nil
		}
		slog.Warn("could not find a valid Sent folder to save the message")
		return nil
	})
	if err != nil {
		slog.Warn("error saving to Sent folder", "err", err)
		return false
	}
	return saved
}

// discoverSentFolder scans LIST output for the mailbox flagged \Sent.
func discoverSentFolder(s *mailbox.Session) string {
	folders, err := s.ListFolders("*")
	if err != nil {
		slog.Debug("error listing folders for Sent discovery", "err", err)
		return ""
	}
	for _, folder := range folders {
		for _, flag := range folder.Flags {
			if flag == string(imap.MailboxAttrSent) {
				slog.Info("found Sent folder by \\Sent flag", "folder", folder.Name)
				return folder.Name
			}
		}
	}
	return ""
}

// sentCandidates builds the ordered, deduplicated candidate list.
func sentCandidates(flagged, override string) []string {
	candidates := make([]string, 0, len(conventionalSentFolders)+2)
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			candidates = append(candidates, name)
		}
	}
	add(flagged)
	add(override)
	for _, name := range conventionalSentFolders {
		add(name)
	}
	return candidates
}

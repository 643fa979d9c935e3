package mailbox

import (
	"fmt"

	"github.com/emersion/go-imap/v2"
)

// Folder is one entry of an IMAP LIST response.
type Folder struct {
	Name      string   `json:"name"`
	Delimiter string   `json:"delimiter"`
	Flags     []string `json:"flags"`
	CanSelect bool     `json:"can_select"`
}

// MoveResult partitions the IDs of a move request: Moved and Failed are
// disjoint and their union is the input set.
type MoveResult struct {
	Moved  []string `json:"moved"`
	Failed []string `json:"failed"`
}

func folderFromList(data *imap.ListData) Folder {
	f := Folder{
		Name:      data.Mailbox,
		Delimiter: string(data.Delim),
		Flags:     make([]string, 0, len(data.Attrs)),
		CanSelect: true,
	}
	for _, attr := range data.Attrs {
		f.Flags = append(f.Flags, string(attr))
		if attr == imap.MailboxAttrNoSelect {
			f.CanSelect = false
		}
	}
	return f
}

// ListFolders lists mailboxes matching pattern ("*" when empty).
func (s *Session) ListFolders(pattern string) ([]Folder, error) {
	if pattern == "" {
		pattern = "*"
	}
	boxes, err := s.client.List("", pattern, nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("LIST failed: %w", err)
	}
	folders := make([]Folder, 0, len(boxes))
	for _, b := range boxes {
		folders = append(folders, folderFromList(b))
	}
	return folders, nil
}

// EnsureFolder creates a folder unless LIST already shows it.
func (s *Session) EnsureFolder(name string) error {
	boxes, err := s.client.List("", name, nil).Collect()
	if err == nil && len(boxes) > 0 {
		return nil
	}
	if err := s.client.Create(name, nil).Wait(); err != nil {
		return fmt.Errorf("CREATE %s failed: %w", Quote(name), err)
	}
	s.log.Info("created folder", "folder", name)
	return nil
}

// Delete marks each message \Deleted individually so one bad ID cannot fail
// the batch, then expunges once regardless of per-ID outcomes.
func (s *Session) Delete(ids []string) (deleted, failed []string) {
	for _, id := range ids {
		if err := s.markDeleted(id); err != nil {
			s.log.Error("failed to delete email", "uid", id, "err", err)
			failed = append(failed, id)
			continue
		}
		deleted = append(deleted, id)
	}
	if err := s.client.Expunge().Close(); err != nil {
		s.log.Warn("EXPUNGE failed", "err", err)
	}
	return deleted, failed
}

func (s *Session) markDeleted(id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	return s.client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil).Close()
}

// MoveToFolder moves messages into target. When createIfMissing is set and
// folder creation fails, the whole operation fails fast: no ID is moved and
// every ID is reported failed. Each ID tries the native MOVE first and falls
// back to COPY plus \Deleted. One EXPUNGE runs at the end, only when at
// least one message moved.
func (s *Session) MoveToFolder(ids []string, target string, createIfMissing bool) MoveResult {
	result := MoveResult{Moved: []string{}, Failed: []string{}}

	if createIfMissing {
		if err := s.EnsureFolder(target); err != nil {
			s.log.Error("failed to create folder", "folder", target, "err", err)
			result.Failed = append(result.Failed, ids...)
			return result
		}
	}

	for _, id := range ids {
		if err := s.moveOne(id, target); err != nil {
			s.log.Error("error moving email", "uid", id, "folder", target, "err", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Moved = append(result.Moved, id)
	}

	if len(result.Moved) > 0 {
		if err := s.client.Expunge().Close(); err != nil {
			s.log.Warn("EXPUNGE failed", "err", err)
		}
	}
	return result
}

func (s *Session) moveOne(id, target string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	set := imap.UIDSetNum(uid)

	_, moveErr := s.client.Move(set, target).Wait()
	if moveErr == nil {
		return nil
	}
	s.log.Debug("MOVE not supported, falling back to COPY+DELETE", "uid", id, "err", moveErr)

	if _, err := s.client.Copy(set, target).Wait(); err != nil {
		return fmt.Errorf("COPY to %s failed: %w", Quote(target), err)
	}
	return s.client.Store(set, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil).Close()
}

// ModifyFlags applies a STORE of the normalized flags to every ID. One
// batched STORE is attempted first; on failure each ID is stored
// individually so a single bad ID cannot fail the batch. The returned map
// covers exactly the input ID set. Empty ids or flags short-circuit to an
// empty map.
func (s *Session) ModifyFlags(ids []string, flags []Flag, op FlagOp, silent bool) (map[string]bool, error) {
	if len(ids) == 0 || len(flags) == 0 {
		return map[string]bool{}, nil
	}
	store, err := storeFlags(flags, op, silent)
	if err != nil {
		return nil, err
	}

	results := make(map[string]bool, len(ids))
	var set imap.UIDSet
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		uid, err := parseUID(id)
		if err != nil {
			results[id] = false
			continue
		}
		set.AddNum(uid)
		valid = append(valid, id)
	}
	if len(valid) == 0 {
		return results, nil
	}

	batchErr := s.client.Store(set, store, nil).Close()
	if batchErr == nil {
		for _, id := range valid {
			results[id] = true
		}
		s.log.Info("modified flags", "op", op, "count", len(valid))
		return results, nil
	}
	s.log.Warn("batch flag operation failed, trying individual operations", "err", batchErr)

	for _, id := range valid {
		uid, _ := parseUID(id)
		err := s.client.Store(imap.UIDSetNum(uid), store, nil).Close()
		if err != nil {
			s.log.Error("error modifying flags", "uid", id, "err", err)
		}
		results[id] = err == nil
	}
	return results, nil
}

package mailbox

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"golang.org/x/sync/errgroup"

	"github.com/smcmanigal/mcp-email-server/internal/message"
)

// DateChunkSize is how many UIDs go into one INTERNALDATE fetch. Chunks are
// fetched concurrently over the session's single connection; the protocol
// pipelines them.
const DateChunkSize = 5000

// SearchUIDs runs a UID SEARCH for the filter and returns the matching UIDs
// in server order.
func (s *Session) SearchUIDs(filter Filter) ([]imap.UID, error) {
	s.log.Debug("searching", "criteria", strings.Join(filter.Tokens(), " "))
	data, err := s.client.UIDSearch(filter.Criteria(), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("SEARCH failed: %w", err)
	}
	return data.AllUIDs(), nil
}

// Count returns the number of messages matching the filter. It performs only
// the SEARCH, never the date or header fetches, so total-page computation
// stays cheap.
func (s *Session) Count(filter Filter) (int, error) {
	uids, err := s.SearchUIDs(filter)
	if err != nil {
		return 0, err
	}
	return len(uids), nil
}

// PageMetadata returns one page of header metadata for the filtered mailbox,
// ordered by INTERNALDATE. The fetch is two-phase: dates for every match to
// establish the order, then headers for exactly the requested window.
func (s *Session) PageMetadata(filter Filter, page, pageSize int, ascending bool) ([]*message.Metadata, error) {
	uids, err := s.SearchUIDs(filter)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	dates, err := s.fetchDates(uids, DateChunkSize)
	if err != nil {
		return nil, err
	}

	sorted := sortUIDsByDate(dates, ascending)
	window := pageWindow(sorted, page, pageSize)
	if len(window) == 0 {
		return nil, nil
	}

	byUID, err := s.fetchHeaders(window)
	if err != nil {
		return nil, err
	}

	metas := make([]*message.Metadata, 0, len(window))
	for _, uid := range window {
		if meta, ok := byUID[uid]; ok {
			metas = append(metas, meta)
		}
	}
	return metas, nil
}

// fetchDates retrieves INTERNALDATE for every UID, split into fixed-size
// chunks fetched concurrently and merged into one map.
func (s *Session) fetchDates(uids []imap.UID, chunkSize int) (map[imap.UID]time.Time, error) {
	chunks := chunkUIDs(uids, chunkSize)
	dates := make(map[imap.UID]time.Time, len(uids))
	var mu sync.Mutex

	started := time.Now()
	var g errgroup.Group
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			var set imap.UIDSet
			set.AddNum(chunk...)
			msgs, err := s.client.Fetch(set, &imap.FetchOptions{UID: true, InternalDate: true}).Collect()
			if err != nil {
				return fmt.Errorf("FETCH INTERNALDATE failed: %w", err)
			}
			mu.Lock()
			for _, m := range msgs {
				dates[m.UID] = m.InternalDate
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(chunks) > 1 {
		s.log.Info("fetched dates", "uids", len(uids), "chunks", len(chunks), "elapsed", time.Since(started))
	}
	return dates, nil
}

// fetchHeaders retrieves BODY.PEEK[HEADER] for the given UIDs in one batched
// request and decodes each. Decode failures are reported per message, never
// raised; the headerless UID is simply absent from the result.
func (s *Session) fetchHeaders(uids []imap.UID) (map[imap.UID]*message.Metadata, error) {
	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierHeader, Peek: true}
	var set imap.UIDSet
	set.AddNum(uids...)

	msgs, err := s.client.Fetch(set, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("FETCH headers failed: %w", err)
	}

	byUID := make(map[imap.UID]*message.Metadata, len(msgs))
	for _, m := range msgs {
		raw := m.FindBodySection(section)
		if len(raw) == 0 {
			continue
		}
		meta, err := message.DecodeHeaders(raw, formatUID(m.UID))
		if err != nil {
			s.log.Error("error parsing email headers", "uid", m.UID, "err", err)
			continue
		}
		byUID[m.UID] = meta
	}
	return byUID, nil
}

func chunkUIDs(uids []imap.UID, size int) [][]imap.UID {
	if size <= 0 {
		size = DateChunkSize
	}
	var chunks [][]imap.UID
	for len(uids) > size {
		chunks = append(chunks, uids[:size])
		uids = uids[size:]
	}
	if len(uids) > 0 {
		chunks = append(chunks, uids)
	}
	return chunks
}

// sortUIDsByDate orders UIDs by their INTERNALDATE, descending by default.
// Messages sharing a date are ordered by numeric UID so pagination stays
// deterministic across calls.
func sortUIDsByDate(dates map[imap.UID]time.Time, ascending bool) []imap.UID {
	uids := make([]imap.UID, 0, len(dates))
	for uid := range dates {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool {
		di, dj := dates[uids[i]], dates[uids[j]]
		if !di.Equal(dj) {
			if ascending {
				return di.Before(dj)
			}
			return di.After(dj)
		}
		return uids[i] < uids[j]
	})
	return uids
}

// pageWindow selects the 1-based page of size pageSize from the sorted UIDs.
func pageWindow(uids []imap.UID, page, pageSize int) []imap.UID {
	if page < 1 || pageSize < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(uids) {
		return nil
	}
	end := start + pageSize
	if end > len(uids) {
		end = len(uids)
	}
	return uids[start:end]
}

package mailbox

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Filter describes a mailbox search. Zero-valued fields are omitted from the
// generated criteria; a completely empty filter matches every message.
//
// The three flag fields are tri-state: nil means "don't care".
type Filter struct {
	Before *time.Time
	Since  *time.Time

	Subject string
	Body    string
	Text    string
	From    string
	To      string

	Seen     *bool
	Flagged  *bool
	Answered *bool
}

// searchDate formats a time the way SEARCH date operands are written on the
// wire: DD-MMM-YYYY with an uppercase month abbreviation.
func searchDate(t time.Time) string {
	return strings.ToUpper(t.Format("02-Jan-2006"))
}

// Tokens renders the filter as the RFC 3501 SEARCH token sequence. This is
// the canonical wire form: free-text operands are quoted per Quote, emission
// order is fixed, and an empty filter collapses to the single token ALL.
// It is what gets logged alongside every search.
func (f Filter) Tokens() []string {
	var tokens []string
	if f.Before != nil {
		tokens = append(tokens, "BEFORE", searchDate(*f.Before))
	}
	if f.Since != nil {
		tokens = append(tokens, "SINCE", searchDate(*f.Since))
	}
	for _, op := range []struct{ key, value string }{
		{"SUBJECT", f.Subject},
		{"BODY", f.Body},
		{"TEXT", f.Text},
		{"FROM", f.From},
		{"TO", f.To},
	} {
		if op.value != "" {
			tokens = append(tokens, op.key, Quote(op.value))
		}
	}
	for _, fl := range []struct {
		value    *bool
		set, not string
	}{
		{f.Seen, "SEEN", "UNSEEN"},
		{f.Flagged, "FLAGGED", "UNFLAGGED"},
		{f.Answered, "ANSWERED", "UNANSWERED"},
	} {
		switch {
		case fl.value == nil:
		case *fl.value:
			tokens = append(tokens, fl.set)
		default:
			tokens = append(tokens, fl.not)
		}
	}
	if len(tokens) == 0 {
		return []string{"ALL"}
	}
	return tokens
}

// Criteria builds the executable go-imap form of the filter. Tokens and
// Criteria are derived from the same fields and always agree.
func (f Filter) Criteria() *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	if f.Before != nil {
		criteria.Before = *f.Before
	}
	if f.Since != nil {
		criteria.Since = *f.Since
	}
	if f.Subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: f.Subject})
	}
	if f.Body != "" {
		criteria.Body = append(criteria.Body, f.Body)
	}
	if f.Text != "" {
		criteria.Text = append(criteria.Text, f.Text)
	}
	if f.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: f.From})
	}
	if f.To != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "To", Value: f.To})
	}
	for _, fl := range []struct {
		value *bool
		flag  imap.Flag
	}{
		{f.Seen, imap.FlagSeen},
		{f.Flagged, imap.FlagFlagged},
		{f.Answered, imap.FlagAnswered},
	} {
		switch {
		case fl.value == nil:
		case *fl.value:
			criteria.Flag = append(criteria.Flag, fl.flag)
		default:
			criteria.NotFlag = append(criteria.NotFlag, fl.flag)
		}
	}
	return criteria
}

package mailbox

import (
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestFilterTokensEmpty(t *testing.T) {
	assert.Equal(t, []string{"ALL"}, Filter{}.Tokens())
}

func TestFilterTokensSubject(t *testing.T) {
	tokens := Filter{Subject: "Test"}.Tokens()
	assert.Equal(t, []string{"SUBJECT", `"Test"`}, tokens)
}

func TestFilterTokensQuoting(t *testing.T) {
	tokens := Filter{Subject: `re: "urgent"`}.Tokens()
	assert.Equal(t, []string{"SUBJECT", `"re: \"urgent\""`}, tokens)
}

func TestFilterTokensOrder(t *testing.T) {
	before := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	since := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := Filter{
		Before:  timePtr(before),
		Since:   timePtr(since),
		Subject: "report",
		From:    "boss@example.com",
		Seen:    boolPtr(false),
		Flagged: boolPtr(true),
	}
	assert.Equal(t, []string{
		"BEFORE", "05-MAR-2024",
		"SINCE", "01-JAN-2024",
		"SUBJECT", `"report"`,
		"FROM", `"boss@example.com"`,
		"UNSEEN",
		"FLAGGED",
	}, f.Tokens())
}

func TestFilterTokensFlagStates(t *testing.T) {
	assert.Equal(t, []string{"SEEN"}, Filter{Seen: boolPtr(true)}.Tokens())
	assert.Equal(t, []string{"UNSEEN"}, Filter{Seen: boolPtr(false)}.Tokens())
	assert.Equal(t, []string{"ANSWERED"}, Filter{Answered: boolPtr(true)}.Tokens())
	assert.Equal(t, []string{"UNFLAGGED"}, Filter{Flagged: boolPtr(false)}.Tokens())
}

func TestSearchDate(t *testing.T) {
	d := time.Date(2023, time.December, 9, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "09-DEC-2023", searchDate(d))
}

func TestFilterCriteria(t *testing.T) {
	since := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	f := Filter{
		Since:   timePtr(since),
		Subject: "invoice",
		Body:    "overdue",
		Text:    "payment",
		To:      "me@example.com",
		Seen:    boolPtr(true),
		Flagged: boolPtr(false),
	}
	c := f.Criteria()

	assert.Equal(t, since, c.Since)
	assert.True(t, c.Before.IsZero())

	require.Len(t, c.Header, 2)
	assert.Equal(t, "Subject", c.Header[0].Key)
	assert.Equal(t, "invoice", c.Header[0].Value)
	assert.Equal(t, "To", c.Header[1].Key)

	assert.Equal(t, []string{"overdue"}, c.Body)
	assert.Equal(t, []string{"payment"}, c.Text)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, c.Flag)
	assert.Equal(t, []imap.Flag{imap.FlagFlagged}, c.NotFlag)
}

func TestFilterCriteriaEmpty(t *testing.T) {
	c := Filter{}.Criteria()
	assert.Empty(t, c.Header)
	assert.Empty(t, c.Body)
	assert.Empty(t, c.Text)
	assert.Empty(t, c.Flag)
	assert.Empty(t, c.NotFlag)
	assert.True(t, c.Before.IsZero())
	assert.True(t, c.Since.IsZero())
}

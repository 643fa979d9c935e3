package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const icsFixture = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Example//Calendar//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-1@example.com\r\n" +
	"DTSTAMP:20240401T090000Z\r\n" +
	"DTSTART:20240510T140000Z\r\n" +
	"SUMMARY:Project sync\r\n" +
	"LOCATION:Room 4\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestCalendarSummary(t *testing.T) {
	summary := calendarSummary(icsFixture)
	assert.Equal(t, "[Calendar event: Project sync at 2024-05-10 14:00 UTC, Room 4]", summary)
}

func TestCalendarSummaryInvalid(t *testing.T) {
	assert.Equal(t, "", calendarSummary("not a calendar"))
	assert.Equal(t, "", calendarSummary(""))
}

func TestDecodeCalendarInvite(t *testing.T) {
	raw := "From: organizer@example.com\r\n" +
		"To: attendee@example.com\r\n" +
		"Subject: Invitation: Project sync\r\n" +
		"Date: Mon, 01 Apr 2024 09:00:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"inv\"\r\n" +
		"\r\n" +
		"--inv\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"You have been invited.\r\n" +
		"--inv\r\n" +
		"Content-Type: text/calendar; method=REQUEST\r\n" +
		"\r\n" +
		icsFixture +
		"--inv--\r\n"

	body, err := Decode([]byte(raw), "200", 0)
	require.NoError(t, err)
	assert.Contains(t, body.Body, "You have been invited.")
	assert.Contains(t, body.Body, "[Calendar event: Project sync")
}

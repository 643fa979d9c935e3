package message

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// calendarSummary renders a text/calendar part as readable lines, one per
// event. Invites commonly arrive without any text alternative, so this is
// what makes them visible in the decoded body. Returns "" when the part is
// not parseable iCalendar.
func calendarSummary(src string) string {
	cal, err := ical.NewDecoder(strings.NewReader(src)).Decode()
	if err != nil {
		return ""
	}

	var lines []string
	for _, event := range cal.Events() {
		summary, err := event.Props.Text(ical.PropSummary)
		if err != nil || summary == "" {
			summary = "(no title)"
		}
		line := fmt.Sprintf("[Calendar event: %s", summary)
		if start, err := event.DateTimeStart(time.UTC); err == nil && !start.IsZero() {
			line += " at " + start.UTC().Format("2006-01-02 15:04 MST")
		}
		if location, err := event.Props.Text(ical.PropLocation); err == nil && location != "" {
			line += ", " + location
		}
		lines = append(lines, line+"]")
	}
	return strings.Join(lines, "\n")
}

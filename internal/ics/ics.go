// Package ics renders reminders as an iCalendar feed so external calendar
// apps can subscribe to them.
package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/calebwray/tock/internal/model"
)

const dateTimeFormat = "20060102T150405Z"

// Feed renders the reminders as a VCALENDAR document. Completed reminders
// are expected to be filtered out by the caller.
func Feed(reminders []model.Reminder, now time.Time) []byte {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:-//tock//reminders//EN")
	writeLine(&b, "CALSCALE:GREGORIAN")

	for i := range reminders {
		writeEvent(&b, &reminders[i], now)
	}

	writeLine(&b, "END:VCALENDAR")
	return []byte(b.String())
}

func writeEvent(b *strings.Builder, r *model.Reminder, now time.Time) {
	start := r.DueDate
	if r.ReminderTime != nil {
		start = *r.ReminderTime
	}

	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, fmt.Sprintf("UID:reminder-%d@tock", r.ID))
	writeLine(b, "DTSTAMP:"+now.UTC().Format(dateTimeFormat))
	writeLine(b, "DTSTART:"+start.UTC().Format(dateTimeFormat))
	writeLine(b, "SUMMARY:"+escape(r.Title))
	if r.Description != "" {
		writeLine(b, "DESCRIPTION:"+escape(r.Description))
	}
	if rule := rrule(r); rule != "" {
		writeLine(b, "RRULE:"+rule)
	}
	writeLine(b, "END:VEVENT")
}

// rrule maps the recurrence fields to an iCalendar RRULE. Custom rules have
// no expressible schedule, so they render as one-off events.
func rrule(r *model.Reminder) string {
	if !r.IsRecurring {
		return ""
	}
	interval := r.RecurrenceInterval
	if interval < 1 {
		interval = 1
	}
	switch r.RecurrenceType {
	case model.RecurrenceDaily:
		return fmt.Sprintf("FREQ=DAILY;INTERVAL=%d", interval)
	case model.RecurrenceWeekly:
		return fmt.Sprintf("FREQ=WEEKLY;INTERVAL=%d", interval)
	case model.RecurrenceMonthly:
		return fmt.Sprintf("FREQ=MONTHLY;INTERVAL=%d", interval)
	default:
		return ""
	}
}

// escape applies RFC 5545 text escaping.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// writeLine appends a content line with CRLF, folding lines longer than 75
// octets as the format requires.
func writeLine(b *strings.Builder, line string) {
	const limit = 75
	for len(line) > limit {
		b.WriteString(line[:limit])
		b.WriteString("\r\n ")
		line = line[limit:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

package task

import (
	"regexp"
	"time"
)

// Reminder is a successful extraction from inbound chat text.
type Reminder struct {
	SendTime time.Time
	Message  string
}

// reminderShape is the structural check: a 16-character date/time field of
// digits, '.', ':' and whitespace, one whitespace separator, then a
// non-empty body. (?s) lets the body span newlines; the whole string must
// match, so a reminder embedded in other text does not count.
var reminderShape = regexp.MustCompile(`(?s)^([0-9.:\s]{16})\s(.+)$`)

// timeLayout is the strict format for the date/time field.
const timeLayout = "02.01.2006 15:04"

// Parser extracts reminders from raw inbound text.
//
// Parsing is two-stage: the shape check above, then a strict parse of the
// date/time field. Either failing is a non-match, never an error — most
// chat messages are not reminder requests, and a structurally matching
// message with an impossible date (e.g. "32.13.2026 10:00") is untrusted
// input, not a fault.
type Parser struct {
	loc *time.Location
}

// NewParser returns a parser interpreting reminder times in loc.
// A nil loc means the process-local zone.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// Parse returns the extracted reminder and whether text matched.
// The body is taken verbatim; the send time carries minute precision
// (the layout has no seconds field).
func (p *Parser) Parse(text string) (Reminder, bool) {
	m := reminderShape.FindStringSubmatch(text)
	if m == nil {
		return Reminder{}, false
	}
	at, err := time.ParseInLocation(timeLayout, m[1], p.loc)
	if err != nil {
		return Reminder{}, false
	}
	return Reminder{SendTime: at, Message: m[2]}, true
}

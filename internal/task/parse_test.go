package task

import (
	"testing"
	"time"
)

func TestParseValid(t *testing.T) {
	t.Parallel()
	p := NewParser(time.UTC)

	tests := []struct {
		name string
		text string
		at   time.Time
		body string
	}{
		{
			name: "plain",
			text: "01.01.2030 10:00 Buy milk",
			at:   time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
			body: "Buy milk",
		},
		{
			name: "multiline body",
			text: "24.12.2026 18:30 wrap presents\nand hide them",
			at:   time.Date(2026, 12, 24, 18, 30, 0, 0, time.UTC),
			body: "wrap presents\nand hide them",
		},
		{
			name: "body whitespace kept verbatim",
			text: "01.01.2030 10:00  spaced  body ",
			at:   time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
			body: " spaced  body ",
		},
		{
			name: "single character body",
			text: "05.06.2027 07:05 x",
			at:   time.Date(2027, 6, 5, 7, 5, 0, 0, time.UTC),
			body: "x",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.text)
			if !ok {
				t.Fatalf("Parse(%q) did not match", tt.text)
			}
			if !got.SendTime.Equal(tt.at) {
				t.Fatalf("SendTime = %v, want %v", got.SendTime, tt.at)
			}
			if got.Message != tt.body {
				t.Fatalf("Message = %q, want %q", got.Message, tt.body)
			}
			if s := got.SendTime.Second(); s != 0 {
				t.Fatalf("SendTime has seconds: %d", s)
			}
		})
	}
}

func TestParseNonMatch(t *testing.T) {
	t.Parallel()
	p := NewParser(time.UTC)

	tests := []struct {
		name string
		text string
	}{
		{name: "ordinary chat", text: "hello there"},
		{name: "empty", text: ""},
		{name: "command", text: "/start"},
		{name: "missing body", text: "01.01.2030 10:00"},
		{name: "separator but empty body", text: "01.01.2030 10:00 "},
		{name: "embedded in other text", text: "note 01.01.2030 10:00 call mom"},
		{name: "short date field", text: "1.1.2030 10:00 call mom"},
		{name: "impossible date", text: "32.13.2030 10:00 call mom"},
		{name: "impossible time", text: "01.01.2030 25:61 call mom"},
		{name: "garbage sixteen chars", text: "..: ..: ..: ..:  call mom"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := p.Parse(tt.text); ok {
				t.Fatalf("Parse(%q) matched unexpectedly: %+v", tt.text, got)
			}
		})
	}
}

func TestParserDefaultsToLocalZone(t *testing.T) {
	t.Parallel()
	p := NewParser(nil)
	got, ok := p.Parse("01.01.2030 10:00 Buy milk")
	if !ok {
		t.Fatal("expected match")
	}
	want := time.Date(2030, 1, 1, 10, 0, 0, 0, time.Local)
	if !got.SendTime.Equal(want) {
		t.Fatalf("SendTime = %v, want %v", got.SendTime, want)
	}
}

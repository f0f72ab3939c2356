package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent is one parsed Server-Sent Event.
type SSEEvent struct {
	Type string
	Data string
}

// ParseSSEEvents parses an SSE response body into events, failing the
// test on malformed input. Per the SSE spec: multiple data lines join
// with newline, a blank line terminates the event, data with no event
// line defaults to the "message" type, and ":" comment lines are ignored.
//
//	events := testutil.ParseSSEEvents(t, rec.Body.String())
//	if e := testutil.FindEvent(events, "done"); e == nil {
//		t.Fatal("no done event")
//	}
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var (
		events    []SSEEvent
		eventType string
		dataLines []string
	)

	flush := func() {
		if eventType == "" {
			return
		}
		events = append(events, SSEEvent{
			Type: eventType,
			Data: strings.Join(dataLines, "\n"),
		})
		eventType = ""
		dataLines = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()

		switch {
		case strings.HasPrefix(text, "event: "):
			if len(dataLines) > 0 {
				t.Fatalf("line %d: event %q starts before previous event terminated", line, text)
			}
			eventType = strings.TrimPrefix(text, "event: ")

		case strings.HasPrefix(text, "data: "):
			if eventType == "" {
				eventType = "message" // spec default when data precedes event
			}
			dataLines = append(dataLines, strings.TrimPrefix(text, "data: "))

		case text == "":
			flush()

		case strings.HasPrefix(text, ":"):
			// comment / keepalive, skip

		default:
			t.Fatalf("line %d: unexpected SSE line %q", line, text)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}

	if eventType != "" {
		t.Fatalf("SSE stream ended without terminating event %q", eventType)
	}

	return events
}

// FindEvent returns the first event of the given type, or nil.
func FindEvent(events []SSEEvent, eventType string) *SSEEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// FindAllEvents returns every event of the given type.
func FindAllEvents(events []SSEEvent, eventType string) []SSEEvent {
	var found []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}

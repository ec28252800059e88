// Package message turns consumed booking events into ready-to-send Telegram
// texts. Rendering is pure; delivery and persistence live in dispatch.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Message struct {
	ChatID string
	Text   string
}

// ErrNoRecipient marks an event whose target has no chat address configured.
// Callers skip these without treating them as failures.
var ErrNoRecipient = errors.New("message: no recipient chat id")

var ErrUnknownEvent = errors.New("message: unknown event type")

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventWaitlistJoined       = "booking.waitlist.joined.v1"
	EventSlotFreed            = "booking.slot.freed.v1"
	EventReminderDue          = "booking.reminder.due.v1"
)

// FirstRecord normalizes a joined record that may arrive as a single object,
// as a one-element (or longer) array of objects, or not at all. It returns the
// object itself, the first array element, or def when neither applies.
func FirstRecord(v any, def map[string]any) map[string]any {
	switch rec := v.(type) {
	case map[string]any:
		return rec
	case []any:
		if len(rec) > 0 {
			if first, ok := rec[0].(map[string]any); ok {
				return first
			}
		}
	}
	return def
}

// Render builds the outbound message for one consumed event.
func Render(eventType string, payload []byte) (Message, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Message{}, fmt.Errorf("decode %s payload: %w", eventType, err)
	}

	switch eventType {
	case EventAppointmentBooked:
		return renderBooked(fields)
	case EventAppointmentCancelled:
		return renderCancelled(fields)
	case EventWaitlistJoined:
		return renderWaitlistJoined(fields)
	case EventSlotFreed:
		return renderSlotFreed(fields)
	case EventReminderDue:
		return renderReminder(fields)
	default:
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
}

func renderBooked(fields map[string]any) (Message, error) {
	chatID := str(fields, "master_chat_id", "")
	if chatID == "" {
		return Message{}, ErrNoRecipient
	}
	svc := FirstRecord(fields["service"], map[string]any{})
	serviceName := str(svc, "name", "a service")
	when := formatLocal(str(fields, "start_time", ""), str(fields, "timezone", ""))
	text := fmt.Sprintf("*New booking*\n%s — %s (%s)\n%s",
		serviceName,
		str(fields, "client_name", "a client"),
		str(fields, "client_phone", "no phone"),
		when,
	)
	return Message{ChatID: chatID, Text: text}, nil
}

func renderCancelled(fields map[string]any) (Message, error) {
	chatID := str(fields, "master_chat_id", "")
	if chatID == "" {
		return Message{}, ErrNoRecipient
	}
	serviceName := str(fields, "service_name", "")
	if serviceName == "" {
		serviceName = str(FirstRecord(fields["service"], map[string]any{}), "name", "a service")
	}
	when := formatLocal(str(fields, "start_time", ""), str(fields, "timezone", ""))
	text := fmt.Sprintf("*Booking cancelled*\n%s — %s\n%s",
		serviceName,
		str(fields, "client_name", "a client"),
		when,
	)
	return Message{ChatID: chatID, Text: text}, nil
}

func renderWaitlistJoined(fields map[string]any) (Message, error) {
	chatID := str(fields, "master_chat_id", "")
	if chatID == "" {
		return Message{}, ErrNoRecipient
	}
	text := fmt.Sprintf("*Waitlist*\n%s (%s) is waiting for an opening on %s",
		str(fields, "client_name", "a client"),
		str(fields, "client_phone", "no phone"),
		str(fields, "date", "an upcoming date"),
	)
	return Message{ChatID: chatID, Text: text}, nil
}

func renderSlotFreed(fields map[string]any) (Message, error) {
	chatID := str(fields, "master_chat_id", "")
	if chatID == "" {
		return Message{}, ErrNoRecipient
	}
	text := fmt.Sprintf("*Slot freed*\n%s opened up on %s; %d client(s) on the waitlist",
		formatLocal(str(fields, "freed_time", ""), str(fields, "timezone", "")),
		str(fields, "date", "that date"),
		intVal(fields, "waiting_count", 1),
	)
	return Message{ChatID: chatID, Text: text}, nil
}

func renderReminder(fields map[string]any) (Message, error) {
	chatID := str(fields, "chat_id", "")
	if chatID == "" {
		return Message{}, ErrNoRecipient
	}
	text := fmt.Sprintf("*Reminder*\n%s, you have %s with %s tomorrow at %s",
		str(fields, "client_name", "hello"),
		str(fields, "service_name", "an appointment"),
		str(fields, "master_name", "your master"),
		formatLocal(str(fields, "start_time", ""), str(fields, "timezone", "")),
	)
	return Message{ChatID: chatID, Text: text}, nil
}

func str(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intVal(m map[string]any, key string, def int) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return def
}

// formatLocal renders an RFC 3339 instant as local wall time in tz, falling
// back to UTC when tz is empty or unknown, and to the raw string when the
// instant does not parse.
func formatLocal(raw string, tz string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return t.In(loc).Format("Mon, 02 Jan 15:04")
}

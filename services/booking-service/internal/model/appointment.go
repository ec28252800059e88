package model

import "time"

const (
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
)

type Appointment struct {
	ID           string
	MasterID     string
	ServiceID    string
	StartTime    time.Time
	ClientName   string
	ClientPhone  string
	ClientChatID string
	Status       string
	CancelledAt  *time.Time
	CreatedAt    time.Time
}

// WaitlistEntry is a standing request to be told when a slot opens on a date.
// It never turns into an appointment on its own; the master re-engages the
// client by hand.
type WaitlistEntry struct {
	ID           string
	MasterID     string
	DesiredDate  time.Time
	ClientName   string
	ClientPhone  string
	ClientChatID string
	CreatedAt    time.Time
}

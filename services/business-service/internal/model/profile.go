package model

import "time"

// Profile is the authoritative record of a master's business settings. Every
// change is fanned out over events so the booking read model stays current.
type Profile struct {
	MasterID         string
	Name             string
	TelegramChatID   string
	Timezone         string
	DisabledWeekdays []int
	WorkStartMinute  int
	WorkEndMinute    int
	SlotStepMinutes  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Service struct {
	ID              string
	MasterID        string
	Name            string
	Price           string
	DurationMinutes int
	CreatedAt       time.Time
}

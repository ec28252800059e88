// Package catalog is booking's local read model of master profiles and their
// bookable services. It is populated by consuming business-service events and
// is never written from request handlers.
package catalog

import "time"

type Profile struct {
	MasterID         string
	Name             string
	TelegramChatID   string
	Timezone         string
	DisabledWeekdays []int
	WorkStartMinute  int
	WorkEndMinute    int
	SlotStepMinutes  int
}

// Location resolves the profile's business timezone, falling back to UTC when
// the stored name is empty or unknown.
func (p Profile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Service struct {
	ID              string
	MasterID        string
	Name            string
	Price           string
	DurationMinutes int
}

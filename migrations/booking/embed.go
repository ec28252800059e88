// Package bookingmigrations embeds the booking-service database schema.
package bookingmigrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package notificationmigrations embeds the notification-service database schema.
package notificationmigrations

import "embed"

//go:embed *.sql
var FS embed.FS

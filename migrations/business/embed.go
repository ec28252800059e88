// Package businessmigrations embeds the business-service database schema.
package businessmigrations

import "embed"

//go:embed *.sql
var FS embed.FS

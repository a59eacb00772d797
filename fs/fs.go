// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates screens.yaml
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	WebTemplatesDir   = "templates/web"
	ScreensFile       = "screens.yaml"
)

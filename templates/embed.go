// Package templates embeds the dashboard HTML templates.
package templates

import "embed"

// TemplateFS holds every page template and the shared layout.
//
//go:embed *.html
var TemplateFS embed.FS

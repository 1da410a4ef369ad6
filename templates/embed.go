// Package templates embeds the page layouts of the public site.
package templates

import "embed"

// FS holds base.tmpl, partials/*.tmpl and pages/*.tmpl.
//
//go:embed base.tmpl partials/*.tmpl pages/*.tmpl
var FS embed.FS

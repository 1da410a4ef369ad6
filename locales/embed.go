package locales

import "embed"

// FS holds the JSON translation bundles.
//
//go:embed *.json
var FS embed.FS

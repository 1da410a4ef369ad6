// Package assets embeds the static files served under /assets.
package assets

import "embed"

// FS holds css/ and js/.
//
//go:embed css js
var FS embed.FS

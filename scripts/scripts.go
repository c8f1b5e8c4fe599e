// Package scripts embeds the bundled Risor classifier scripts.
//
//   - classify/extended.risor: every JSON shape, like the extended strategy
//   - classify/nullable_strings.risor: strings and null only
//   - shapes.risor: helpers importable as `import shapes`
package scripts

import "embed"

// FS holds the bundled scripts, rooted at this directory.
//
//go:embed shapes.risor classify/*.risor
var FS embed.FS

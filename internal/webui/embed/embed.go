// Package embed carries the static web client served by cookterm serve.
package embed

import "embed"

// DistFS contains the web client assets.
//
//go:embed all:dist
var DistFS embed.FS

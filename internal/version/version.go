// Package version holds the build version, set with
// -ldflags "-X cookterm/internal/version.AppVersion=...".
package version

var AppVersion = "0.1.0-dev"

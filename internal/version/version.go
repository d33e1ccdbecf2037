// Package version carries build-time identification, overridable via
// -ldflags "-X github.com/doeshing/deskrun/internal/version.Version=...".
package version

var (
	Version   = "0.1.0"
	Commit    = ""
	BuildDate = ""
)

package buildinfo

// These variables are set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/keybot/core/buildinfo.Version=v0.2.0'
//	-X 'github.com/m3rciful/keybot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/keybot/core/buildinfo.Date=2026-10-16T12:00:00Z'
//
// Version is also shown to users on the /start welcome screen.
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

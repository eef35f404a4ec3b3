// Package version holds build metadata set through -ldflags.
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// IsDev reports whether this is an unreleased build.
func IsDev() bool {
	return Version == "dev"
}

// Full returns the version line printed by `speedviz --version`.
func Full() string {
	if IsDev() {
		return "speedviz version dev (built from source)"
	}
	return "speedviz version " + Version + " (" + Commit + ", " + Date + ")"
}

// UserAgent is sent with every API request.
func UserAgent() string {
	return "speedviz/" + Version
}

// Package version holds the build version, overridable at link time.
package version

// Version is set via -ldflags "-X github.com/ZhaohnNwafu/Autom6A/pkg/version.Version=..."
var Version = "dev"

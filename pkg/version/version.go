// Package version exposes the build version of vcfbatch.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev" //nolint:gochecknoglobals // Set by the linker at build time

// GetVersion returns the current vcfbatch version string.
func GetVersion() string {
	return Version
}

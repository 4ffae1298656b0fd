// Package misc keeps build time information about program.
package misc

import "strings"

// Values set by linker, see "-X" flags in build scripts.
var (
	appName = "mdeck"
	version = "dev"
	gitHash = "unknown"
)

// GetAppName returns program name.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	return strings.TrimPrefix(version, "v")
}

// GetGitHash returns hash of commit program was built from.
func GetGitHash() string {
	return gitHash
}

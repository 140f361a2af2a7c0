package report

import "strings"

const (
	AppName = "go-bitrate"
	AppURL  = "https://github.com/autobrr/go-bitrate"
)

var AppVersion = "dev"

func SetAppVersion(version string) {
	if version != "" {
		AppVersion = version
	}
}

// FormatVersion renders a version for display: "dev" stays as is, release
// versions get a single leading "v".
func FormatVersion(version string) string {
	version = strings.TrimSpace(version)
	if version == "" || version == "dev" {
		return "dev"
	}
	return "v" + strings.TrimPrefix(version, "v")
}

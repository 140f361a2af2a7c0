package cli

import (
	"fmt"
	"io"

	"github.com/autobrr/go-bitrate/internal/report"
)

// SetVersion records the build version for every output that reports it.
func SetVersion(version string) {
	report.SetAppVersion(version)
}

func Version(stdout io.Writer) {
	fmt.Fprintf(stdout, "%s, %s\n", report.AppName, report.FormatVersion(report.AppVersion))
}

package report

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

var csvHeader = []string{"file", "start", "end", "bits", "bitrate_bps"}

// RenderCSV writes the windowed timeline of every report, one row per
// window, under a single header.
func RenderCSV(reports []Report) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, report := range reports {
		for _, window := range report.Result.Windows() {
			row := []string{
				report.Ref,
				formatCSVFloat(window.Start),
				formatCSVFloat(window.End),
				formatCSVFloat(window.Bits),
				formatCSVFloat(window.Bitrate),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatCSVFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/autobrr/go-bitrate/internal/analysis"
)

func RenderText(reports []Report) string {
	var buf bytes.Buffer
	for i, report := range reports {
		if i > 0 {
			buf.WriteString("\n")
		}
		for j, section := range textSections(report) {
			if j > 0 {
				buf.WriteString("\n")
			}
			writeSection(&buf, section)
		}
		buf.WriteString("\n")
		buf.WriteString(reportByLine())
		buf.WriteString("\n")
	}
	output := strings.TrimRight(buf.String(), "\n")
	return output + "\n\n"
}

func reportByLine() string {
	return fmt.Sprintf("ReportBy : %s - %s", AppName, FormatVersion(AppVersion))
}

func writeSection(buf *bytes.Buffer, section Section) {
	buf.WriteString(section.Title)
	buf.WriteString("\n")
	for _, field := range section.Fields {
		buf.WriteString(padRight(field.Name, 41))
		buf.WriteString(": ")
		buf.WriteString(field.Value)
		buf.WriteString("\n")
	}
}

func padRight(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return value + strings.Repeat(" ", width-len(value))
}

func textSections(report Report) []Section {
	result := report.Result
	stats := result.Stats()
	info := report.Info

	general := Section{Title: "General"}
	general.add("Complete name", report.Ref)
	general.add("Format", info.Format)
	general.add("File size", sizeOrEmpty(info.Size))
	general.add("Duration", formatDuration(info.Duration))
	if info.BitRate > 0 {
		general.add("Overall bit rate", formatBitrate(info.BitRate))
	}

	video := Section{Title: "Video"}
	video.add("Format", codecName(info.Codec, info.CodecLong))
	video.add("Width", formatPixels(info.Width))
	video.add("Height", formatPixels(info.Height))
	video.add("Frame rate", formatFrameRate(info.FrameRate))
	video.add("Duration", formatDuration(stats.TotalDuration))
	video.add("Bit rate", formatBitrate(stats.OverallBitrate))
	video.add("Stream size", formatBytes(stats.TotalSize))
	video.add("Frame count", formatThousands(int64(stats.FrameCount)))
	video.add("I-frames", formatThousands(int64(stats.KeyframeCount())))
	video.add("I-frame interval", fmt.Sprintf("%.1f frames", stats.KeyframeInterval))
	video.add("Extractor", info.Backend)

	opts := result.Options()
	bitrate := Section{Title: "Bit rate"}
	bitrate.add("Per frame mean", formatBitrate(stats.PerFrame.Mean))
	bitrate.add("Per frame maximum", extremeValue(stats.PerFrame.Max, true))
	bitrate.add("Per frame minimum", extremeValue(stats.PerFrame.Min, true))
	bitrate.add("Per frame standard deviation", formatBitrate(stats.PerFrame.StdDev))
	bitrate.add("Window", fmt.Sprintf("%s, step %s", formatSeconds(opts.WindowLength), formatSeconds(opts.WindowStep)))
	bitrate.add("Window count", formatThousands(int64(stats.Windowed.Count)))
	bitrate.add("Window mean", formatBitrate(stats.Windowed.Mean))
	bitrate.add("Window maximum", extremeValue(stats.Windowed.Max, false))
	bitrate.add("Window minimum", extremeValue(stats.Windowed.Min, false))
	bitrate.add("Window standard deviation", formatBitrate(stats.Windowed.StdDev))
	if sampling := result.Sampling(); sampling.Applied {
		bitrate.add("Sampling", fmt.Sprintf("every %s frame (%s of %s kept)", ordinal(sampling.Stride),
			formatThousands(int64(sampling.Retained)), formatThousands(int64(sampling.Total))))
	}

	sections := []Section{general, video, bitrate}
	if warnings := result.Warnings(); len(warnings) > 0 {
		section := Section{Title: "Warnings"}
		for _, warning := range warnings {
			section.add(string(warning.Kind), warning.Message)
		}
		sections = append(sections, section)
	}
	return sections
}

func extremeValue(extreme analysis.Extreme, frame bool) string {
	if frame {
		return fmt.Sprintf("%s at %s (frame %d)", formatBitrate(extreme.Value), formatSeconds(extreme.Timestamp), extreme.Index)
	}
	return fmt.Sprintf("%s at %s", formatBitrate(extreme.Value), formatSeconds(extreme.Timestamp))
}

func codecName(codec, long string) string {
	switch {
	case codec == "" && long == "":
		return ""
	case long == "":
		return codec
	case codec == "":
		return long
	}
	return fmt.Sprintf("%s (%s)", long, codec)
}

func sizeOrEmpty(size int64) string {
	if size <= 0 {
		return ""
	}
	return formatBytes(size)
}

func displayName(ref string) string {
	if ref == "" {
		return "stream"
	}
	return filepath.Base(ref)
}

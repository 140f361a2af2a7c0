package report

import (
	"fmt"
	"math"
	"strings"
)

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div := float64(size)
	exp := 0
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	for div >= unit && exp < len(units)-1 {
		div /= unit
		exp++
	}
	return fmt.Sprintf("%.2f %s", div, units[exp])
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}

	totalMs := int64(math.Round(seconds * 1000))
	if totalMs < 1000 {
		return fmt.Sprintf("%d ms", totalMs)
	}

	totalSec := totalMs / 1000
	remMs := totalMs % 1000
	if totalSec < 60 {
		return fmt.Sprintf("%d s %d ms", totalSec, remMs)
	}

	hours := totalSec / 3600
	minutes := (totalSec % 3600) / 60
	secondsOnly := totalSec % 60
	if hours > 0 {
		return fmt.Sprintf("%d h %d min %d s", hours, minutes, secondsOnly)
	}
	return fmt.Sprintf("%d min %d s", minutes, secondsOnly)
}

// formatBitrate prints small rates in kb/s and large ones in Mb/s. Zero is
// a legitimate rate here (empty windows, zero-byte frames).
func formatBitrate(bitsPerSecond float64) string {
	switch {
	case bitsPerSecond <= 0:
		return "0 kb/s"
	case bitsPerSecond >= 10_000_000:
		return fmt.Sprintf("%.1f Mb/s", bitsPerSecond/1_000_000)
	case bitsPerSecond < 100_000:
		return fmt.Sprintf("%.1f kb/s", bitsPerSecond/1000)
	}
	kbps := int64(math.Round(bitsPerSecond / 1000))
	return fmt.Sprintf("%s kb/s", formatThousands(kbps))
}

func formatThousands(value int64) string {
	if value < 0 {
		return "-" + formatThousands(-value)
	}
	if value < 1000 {
		return fmt.Sprintf("%d", value)
	}

	parts := []string{}
	for value > 0 {
		chunk := value % 1000
		value /= 1000
		if value > 0 {
			parts = append(parts, fmt.Sprintf("%03d", chunk))
		} else {
			parts = append(parts, fmt.Sprintf("%d", chunk))
		}
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " ")
}

func formatFrameRate(rate float64) string {
	if rate <= 0 {
		return ""
	}
	if math.Abs(rate-math.Round(rate)) < 0.0005 {
		return fmt.Sprintf("%.0f FPS", rate)
	}
	return fmt.Sprintf("%.3f FPS", rate)
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f s", seconds)
}

func formatPixels(value int) string {
	if value <= 0 {
		return ""
	}
	return formatThousands(int64(value)) + " pixels"
}

func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

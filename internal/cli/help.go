package cli

import (
	"fmt"
	"io"
)

func HelpNothing(program string, stdout io.Writer) {
	fmt.Fprintf(stdout, "Usage: \"%s [-Options...] FileName1 [Filename2...]\"\n", program)
	fmt.Fprintf(stdout, "\"%s --help\" for displaying more information\n", program)
}

func HelpOutput(program string, stdout io.Writer) {
	fmt.Fprintln(stdout, "--output=...  Select an output format")
	fmt.Fprintf(stdout, "Usage: \"%s --output=json FileName\"\n", program)
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Supported formats:")
	fmt.Fprintln(stdout, "text   Sectioned summary (default)")
	fmt.Fprintln(stdout, "json   Statistics, keyframes, windowed timeline; --frames adds the per-frame series")
	fmt.Fprintln(stdout, "csv    Windowed timeline, one row per window")
	fmt.Fprintln(stdout, "svg    Bitrate graph with keyframe markers")
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Probe backends (--backend):")
	fmt.Fprintln(stdout, "auto     Native reader for MP4/QuickTime, ffprobe for everything else (default)")
	fmt.Fprintln(stdout, "ffprobe  Frame records from the ffprobe executable")
	fmt.Fprintln(stdout, "mp4      Sample tables of progressive MP4/QuickTime files only")
}

func Usage(program string, stdout io.Writer) int {
	HelpNothing(program, stdout)
	return exitError
}

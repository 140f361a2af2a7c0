package probe

import (
	"bytes"
	"path/filepath"
	"strings"
)

const maxSniffBytes = 4096

const (
	FormatUnknown   = "Unknown"
	FormatMatroska  = "Matroska"
	FormatMPEG4     = "MPEG-4"
	FormatQuickTime = "QuickTime"
	FormatAVI       = "AVI"
	FormatOgg       = "Ogg"
	FormatMPEGTS    = "MPEG-TS"
	FormatMPEGPS    = "MPEG-PS"
	FormatFLV       = "Flash Video"
	FormatIVF       = "IVF"
)

// DetectFormat guesses the container from the first bytes of a file.
func DetectFormat(header []byte, filename string) string {
	if len(header) == 0 {
		return FormatUnknown
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".vob" {
		return FormatMPEGPS
	}

	if bytes.HasPrefix(header, []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		return FormatMatroska
	}
	if len(header) >= 12 && string(header[4:8]) == "ftyp" {
		if string(header[8:12]) == "qt  " {
			return FormatQuickTime
		}
		return FormatMPEG4
	}
	if len(header) >= 8 && isQuickTimeAtom(string(header[4:8])) {
		// Pre-ftyp QuickTime files start directly with a top-level atom.
		return FormatQuickTime
	}
	if len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "AVI " {
		return FormatAVI
	}
	if bytes.HasPrefix(header, []byte("OggS")) {
		return FormatOgg
	}
	if bytes.HasPrefix(header, []byte("FLV\x01")) {
		return FormatFLV
	}
	if bytes.HasPrefix(header, []byte("DKIF")) {
		return FormatIVF
	}
	if isMPEGTS(header) {
		return FormatMPEGTS
	}
	if bytes.HasPrefix(header, []byte{0x00, 0x00, 0x01, 0xBA}) {
		return FormatMPEGPS
	}

	return FormatUnknown
}

func isQuickTimeAtom(name string) bool {
	switch name {
	case "moov", "mdat", "wide", "free", "skip", "pnot":
		return true
	}
	return false
}

func isMPEGTS(header []byte) bool {
	if len(header) < 376+1 {
		return false
	}
	return header[0] == 0x47 && header[188] == 0x47 && header[376] == 0x47
}

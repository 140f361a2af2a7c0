package analysis

import (
	"fmt"
	"math"
	"strings"
)

type FrameType string

const (
	FrameTypeI     FrameType = "I"
	FrameTypeP     FrameType = "P"
	FrameTypeB     FrameType = "B"
	FrameTypeOther FrameType = "other"
)

// ParseFrameType maps a decoder picture type tag onto the closed frame type
// set. An empty tag stays empty so that validation can report it as missing.
func ParseFrameType(tag string) FrameType {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "":
		return ""
	case "I":
		return FrameTypeI
	case "P", "SP":
		return FrameTypeP
	case "B", "BI":
		return FrameTypeB
	default:
		return FrameTypeOther
	}
}

func (t FrameType) valid() bool {
	switch t {
	case FrameTypeI, FrameTypeP, FrameTypeB, FrameTypeOther:
		return true
	}
	return false
}

// RawFrameRecord is one frame as reported by an extractor. HasSize and
// HasTimestamp mark which fields the extractor actually saw.
type RawFrameRecord struct {
	Size         int64     `json:"size"`
	Timestamp    float64   `json:"pts"`
	Type         FrameType `json:"type"`
	HasSize      bool      `json:"has_size"`
	HasTimestamp bool      `json:"has_pts"`
}

// Frame builds a fully populated record.
func Frame(size int64, timestamp float64, frameType FrameType) RawFrameRecord {
	return RawFrameRecord{
		Size:         size,
		Timestamp:    timestamp,
		Type:         frameType,
		HasSize:      true,
		HasTimestamp: true,
	}
}

func (r RawFrameRecord) validate(index int) error {
	switch {
	case !r.HasSize:
		return &MalformedRecordError{Index: index, Field: "size", Reason: "missing"}
	case r.Size < 0:
		return &MalformedRecordError{Index: index, Field: "size", Reason: fmt.Sprintf("negative value %d", r.Size)}
	case !r.HasTimestamp:
		return &MalformedRecordError{Index: index, Field: "timestamp", Reason: "missing"}
	case math.IsNaN(r.Timestamp) || math.IsInf(r.Timestamp, 0):
		return &MalformedRecordError{Index: index, Field: "timestamp", Reason: "not a finite number"}
	case r.Type == "":
		return &MalformedRecordError{Index: index, Field: "type", Reason: "missing"}
	case !r.Type.valid():
		return &MalformedRecordError{Index: index, Field: "type", Reason: fmt.Sprintf("unknown frame type %q", r.Type)}
	}
	return nil
}

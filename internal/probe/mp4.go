package probe

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/autobrr/go-bitrate/internal/analysis"
)

// MP4 reads frame sizes and timing straight from the sample tables of
// progressive MP4 and QuickTime files. Fragmented files are unsupported.
type MP4 struct{}

func NewMP4() *MP4 { return &MP4{} }

func (m *MP4) Name() string { return BackendMP4 }

func (m *MP4) Probe(ctx context.Context, path string) (Media, error) {
	file, err := os.Open(path)
	if err != nil {
		return Media{}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return Media{}, err
	}

	parsed, err := mp4.DecodeFile(file, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return Media{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if parsed.Moov == nil {
		return Media{}, fmt.Errorf("%w: no moov box", ErrUnsupported)
	}
	if parsed.IsFragmented() {
		return Media{}, fmt.Errorf("%w: fragmented file", ErrUnsupported)
	}
	if err := ctx.Err(); err != nil {
		return Media{}, err
	}

	trak := firstVideoTrak(parsed.Moov)
	if trak == nil {
		return Media{}, ErrNoVideoStream
	}
	table, err := sampleTableOf(trak)
	if err != nil {
		return Media{}, err
	}
	frames, err := framesFromSampleTable(ctx, table)
	if err != nil {
		return Media{}, err
	}

	info := StreamInfo{
		Format:  FormatMPEG4,
		Codec:   table.codec,
		Size:    stat.Size(),
		Backend: BackendMP4,
	}
	if parsed.Ftyp != nil && parsed.Ftyp.MajorBrand() == "qt  " {
		info.Format = FormatQuickTime
	}
	info.CodecLong = codecLongNames[info.Codec]
	if trak.Tkhd != nil {
		info.Width = int(trak.Tkhd.Width >> 16)
		info.Height = int(trak.Tkhd.Height >> 16)
	}
	if mdhd := trak.Mdia.Mdhd; mdhd != nil && mdhd.Timescale > 0 && mdhd.Duration > 0 {
		info.Duration = float64(mdhd.Duration) / float64(mdhd.Timescale)
		info.FrameRate = float64(len(frames)) / info.Duration
		info.BitRate = float64(totalSize(frames)) * 8 / info.Duration
	}

	return Media{Path: path, Info: info, Frames: frames}, nil
}

var codecLongNames = map[string]string{
	"avc1": "H.264 / AVC",
	"avc3": "H.264 / AVC",
	"hvc1": "H.265 / HEVC",
	"hev1": "H.265 / HEVC",
	"av01": "AV1",
	"vp09": "VP9",
	"mp4v": "MPEG-4 Visual",
	"apch": "Apple ProRes 422 HQ",
	"apcn": "Apple ProRes 422",
	"apcs": "Apple ProRes 422 LT",
	"apco": "Apple ProRes 422 Proxy",
	"ap4h": "Apple ProRes 4444",
}

func firstVideoTrak(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		if trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

// sampleTable is the subset of a track's stbl needed to rebuild frames.
type sampleTable struct {
	codec       string
	timescale   uint32
	sttsCounts  []uint32
	sttsDeltas  []uint32
	ctsOffset   func(sampleNr uint32) int32
	syncSamples []uint32
	allSync     bool
	uniformSize uint32
	sizes       []uint32
	sampleCount uint32
}

func sampleTableOf(trak *mp4.TrakBox) (sampleTable, error) {
	if trak.Mdia.Mdhd == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return sampleTable{}, fmt.Errorf("%w: incomplete video track", ErrUnsupported)
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stts == nil || stbl.Stsz == nil {
		return sampleTable{}, fmt.Errorf("%w: missing stts or stsz", ErrUnsupported)
	}

	table := sampleTable{
		timescale:   trak.Mdia.Mdhd.Timescale,
		sttsCounts:  stbl.Stts.SampleCount,
		sttsDeltas:  stbl.Stts.SampleTimeDelta,
		uniformSize: stbl.Stsz.SampleUniformSize,
		sizes:       stbl.Stsz.SampleSize,
		sampleCount: stbl.Stsz.SampleNumber,
		allSync:     stbl.Stss == nil,
	}
	if stbl.Stss != nil {
		table.syncSamples = stbl.Stss.SampleNumber
	}
	if stbl.Ctts != nil {
		table.ctsOffset = stbl.Ctts.GetCompositionTimeOffset
	}
	if stbl.Stsd != nil && len(stbl.Stsd.Children) > 0 {
		table.codec = stbl.Stsd.Children[0].Type()
	}
	return table, nil
}

var errBadSampleTable = errors.New("inconsistent sample table")

// framesFromSampleTable walks decode order and returns frames sorted by
// presentation time.
func framesFromSampleTable(ctx context.Context, table sampleTable) ([]analysis.RawFrameRecord, error) {
	if table.timescale == 0 {
		return nil, fmt.Errorf("%w: zero timescale", errBadSampleTable)
	}
	if table.uniformSize == 0 && uint32(len(table.sizes)) < table.sampleCount {
		return nil, fmt.Errorf("%w: %d sizes for %d samples", errBadSampleTable, len(table.sizes), table.sampleCount)
	}

	scale := float64(table.timescale)
	frames := make([]analysis.RawFrameRecord, 0, table.sampleCount)
	nextSync := 0
	var decodeTime uint64
	nr := uint32(1)

	for entry, count := range table.sttsCounts {
		if entry >= len(table.sttsDeltas) {
			return nil, fmt.Errorf("%w: stts entry %d has no delta", errBadSampleTable, entry)
		}
		delta := table.sttsDeltas[entry]
		for i := uint32(0); i < count && nr <= table.sampleCount; i++ {
			if nr%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}

			pts := int64(decodeTime)
			if table.ctsOffset != nil {
				pts += int64(table.ctsOffset(nr))
			}

			size := table.uniformSize
			if size == 0 {
				size = table.sizes[nr-1]
			}

			frameType := analysis.FrameTypeOther
			if table.allSync {
				frameType = analysis.FrameTypeI
			} else {
				for nextSync < len(table.syncSamples) && table.syncSamples[nextSync] < nr {
					nextSync++
				}
				if nextSync < len(table.syncSamples) && table.syncSamples[nextSync] == nr {
					frameType = analysis.FrameTypeI
				}
			}

			frames = append(frames, analysis.Frame(int64(size), float64(pts)/scale, frameType))
			decodeTime += uint64(delta)
			nr++
		}
	}

	slices.SortStableFunc(frames, func(a, b analysis.RawFrameRecord) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return frames, nil
}

func totalSize(frames []analysis.RawFrameRecord) int64 {
	var total int64
	for _, frame := range frames {
		total += frame.Size
	}
	return total
}

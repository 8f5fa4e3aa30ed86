package probe

import (
	"math"
	"strconv"
	"strings"

	"github.com/anacrolix/generics"
)

// Metadata fields read from a Container. Unprefixed names refer to the
// primary video stream, "format." ones to the container as a whole.
const (
	FieldCodecType      = "codec_type"
	FieldNbFrames       = "nb_frames"
	FieldNumberOfFrames = "tags.NUMBER_OF_FRAMES"
	// mkvmerge writes the statistics tags with a language suffix.
	FieldNumberOfFramesEng = "tags.NUMBER_OF_FRAMES-eng"
	FieldDuration          = "duration"
	FieldFormatDuration    = "format.duration"
	FieldAvgFrameRate      = "avg_frame_rate"
	FieldRFrameRate        = "r_frame_rate"
)

// Fields holding a frame count written by the muxer, in preference order.
var countFields = []string{
	FieldNbFrames,
	FieldNumberOfFrames,
	FieldNumberOfFramesEng,
}

type Source int

const (
	SourceUnknown Source = iota
	// Read verbatim from container metadata.
	SourceContainer
	// Derived from duration and frame rate.
	SourceEstimate
)

func (s Source) String() string {
	switch s {
	case SourceContainer:
		return "container"
	case SourceEstimate:
		return "estimate"
	default:
		return "unknown"
	}
}

// FrameCount is the number of frames a container claims to hold. It's
// whatever the headers say: variable frame rate and streamed formats may
// report an approximate count, or none at all, in which case Frames is empty.
type FrameCount struct {
	Frames generics.Option[int64]
	Source Source
	// The metadata field the value came from.
	Field string
}

func (fc FrameCount) Known() bool {
	return fc.Frames.Ok
}

func (fc FrameCount) String() string {
	if !fc.Known() {
		return "unknown"
	}
	return strconv.FormatInt(fc.Frames.Value, 10)
}

func knownCount(n int64, source Source, field string) FrameCount {
	return FrameCount{
		Frames: generics.Option[int64]{Value: n, Ok: true},
		Source: source,
		Field:  field,
	}
}

// Some muxers write float counts such as "150.000000".
func parseCount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return floatCount(f)
}

// float64(math.MaxInt64) is 2^63, which doesn't fit in an int64.
func floatCount(f float64) (int64, bool) {
	if math.IsNaN(f) || f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Parses ffmpeg rationals like "30000/1001", as well as plain numbers.
func parseRate(s string) (float64, bool) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	d := 1.0
	if found {
		d, err = strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, false
		}
	}
	if d == 0 || n <= 0 || math.IsInf(n/d, 0) || math.IsNaN(n/d) {
		return 0, false
	}
	return n / d, true
}

func estimateCount(c Container) (FrameCount, bool) {
	var duration float64
	for _, f := range []string{FieldDuration, FieldFormatDuration} {
		v, ok := c.Metadata(f)
		if !ok {
			continue
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && d > 0 && !math.IsInf(d, 0) {
			duration = d
			break
		}
	}
	if duration == 0 {
		return FrameCount{}, false
	}
	for _, f := range []string{FieldAvgFrameRate, FieldRFrameRate} {
		v, ok := c.Metadata(f)
		if !ok {
			continue
		}
		rate, ok := parseRate(v)
		if !ok {
			continue
		}
		n, ok := floatCount(math.Round(duration * rate))
		if !ok {
			return FrameCount{}, false
		}
		return knownCount(n, SourceEstimate, f), true
	}
	return FrameCount{}, false
}

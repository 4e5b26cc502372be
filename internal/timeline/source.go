package timeline

import (
	"fmt"
	"math"

	"broll/internal/transcript"
)

// SourceKind tags where a clip's picture comes from.
type SourceKind string

const (
	SourceOriginal SourceKind = "original"
	SourceStock    SourceKind = "stock"
)

// durationTolerance absorbs float rounding when summing clip durations.
const durationTolerance = 1e-6

// MediaRange is a playable span of a file, in seconds.
type MediaRange struct {
	Path     string
	Start    float64
	Duration float64
}

// Clip is one timeline entry.
type Clip struct {
	Index     int
	Source    SourceKind
	Video     MediaRange
	Audio     MediaRange
	Duration  float64
	Keyword   string
	Loop      bool
	Thumbnail string
}

// OriginalClip replays seg from sourcePath for both picture and sound.
func OriginalClip(index int, sourcePath string, seg transcript.Segment) Clip {
	r := MediaRange{Path: sourcePath, Start: seg.Start, Duration: seg.Duration()}
	return Clip{
		Index:    index,
		Source:   SourceOriginal,
		Video:    r,
		Audio:    r,
		Duration: r.Duration,
	}
}

// StockClip shows stockPath from its first frame, looped if shorter than the
// segment, over the original audio of seg.
func StockClip(index int, sourcePath, stockPath string, seg transcript.Segment, keyword, thumbnail string) Clip {
	d := seg.Duration()
	return Clip{
		Index:     index,
		Source:    SourceStock,
		Video:     MediaRange{Path: stockPath, Start: 0, Duration: d},
		Audio:     MediaRange{Path: sourcePath, Start: seg.Start, Duration: d},
		Duration:  d,
		Keyword:   keyword,
		Loop:      true,
		Thumbnail: thumbnail,
	}
}

// Timeline is the ordered clip list plus the output frame size.
type Timeline struct {
	Clips  []Clip
	Width  int
	Height int
}

// Duration sums clip durations.
func (t Timeline) Duration() float64 {
	var total float64
	for _, c := range t.Clips {
		total += c.Duration
	}
	return total
}

// StockCount reports how many clips were substituted.
func (t Timeline) StockCount() int {
	n := 0
	for _, c := range t.Clips {
		if c.Source == SourceStock {
			n++
		}
	}
	return n
}

// Validate checks that t has one clip per segment, in order, each lasting
// exactly as long as its segment, with audio taken from the segment range.
func (t Timeline) Validate(segments []transcript.Segment) error {
	if len(t.Clips) != len(segments) {
		return fmt.Errorf("timeline has %d clips for %d segments", len(t.Clips), len(segments))
	}
	for i, c := range t.Clips {
		seg := segments[i]
		if c.Index != i {
			return fmt.Errorf("clip %d out of order (index %d)", i, c.Index)
		}
		if math.Abs(c.Duration-seg.Duration()) > durationTolerance {
			return fmt.Errorf("clip %d lasts %.3fs, segment lasts %.3fs", i, c.Duration, seg.Duration())
		}
		if math.Abs(c.Audio.Start-seg.Start) > durationTolerance {
			return fmt.Errorf("clip %d audio starts at %.3fs, segment starts at %.3fs", i, c.Audio.Start, seg.Start)
		}
	}
	if total := transcript.TotalDuration(segments); math.Abs(t.Duration()-total) > durationTolerance*float64(len(segments)+1) {
		return fmt.Errorf("timeline lasts %.3fs, transcript lasts %.3fs", t.Duration(), total)
	}
	return nil
}

// ABOUTME: Timeline data model definitions
// ABOUTME: Defines Sequence, Track, Clip, and Asset records consumed read-only by the playback core
package timeline

import "github.com/google/uuid"

// TrackKind identifies the media kind of a track
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// ClipRange is the clip's window into its source asset
type ClipRange struct {
	SourceInSec  float64
	SourceOutSec float64
}

// Duration returns the length of the range in source time
func (r ClipRange) Duration() float64 {
	return r.SourceOutSec - r.SourceInSec
}

// ClipPlace is the clip's placement on the timeline
type ClipPlace struct {
	TimelineInSec float64
	DurationSec   float64
}

// TimelineOutSec returns the end time on the timeline
func (p ClipPlace) TimelineOutSec() float64 {
	return p.TimelineInSec + p.DurationSec
}

// Contains reports whether a timeline position falls within this
// placement. The interval is half-open: a clip ending at t does not
// contain t, so it never gets scheduled just to hit EOF immediately.
func (p ClipPlace) Contains(timeSec float64) bool {
	return timeSec >= p.TimelineInSec && timeSec < p.TimelineOutSec()
}

// Overlaps reports whether two placements overlap on the timeline
func (p ClipPlace) Overlaps(other ClipPlace) bool {
	return p.TimelineInSec < other.TimelineOutSec() && p.TimelineOutSec() > other.TimelineInSec
}

// AudioSettings holds per-clip audio adjustments
type AudioSettings struct {
	// Volume in dB (-60 to +6)
	VolumeDb float64
	// Pan: -1 left, 0 center, 1 right
	Pan   float64
	Muted bool
}

// Clip is a media segment on a track
type Clip struct {
	ID      string
	AssetID string
	Range   ClipRange
	Place   ClipPlace
	// Playback speed multiplier, > 0
	Speed float64
	Audio AudioSettings
}

// NewClip creates a clip covering [sourceIn, sourceOut) placed at timelineIn
func NewClip(assetID string, sourceIn, sourceOut, timelineIn float64) Clip {
	return Clip{
		ID:      uuid.New().String(),
		AssetID: assetID,
		Range:   ClipRange{SourceInSec: sourceIn, SourceOutSec: sourceOut},
		Place:   ClipPlace{TimelineInSec: timelineIn, DurationSec: sourceOut - sourceIn},
		Speed:   1.0,
	}
}

// Track holds an ordered list of clips
type Track struct {
	ID    string
	Kind  TrackKind
	Name  string
	Muted bool
	// Volume multiplier 0.0 - 2.0, 1.0 = 100%
	Volume float64
	Clips  []Clip
}

// NewTrack creates an empty track
func NewTrack(name string, kind TrackKind) Track {
	return Track{
		ID:     uuid.New().String(),
		Kind:   kind,
		Name:   name,
		Volume: 1.0,
	}
}

// IsAudio reports whether the track carries audio
func (t *Track) IsAudio() bool {
	return t.Kind == TrackAudio
}

// Sequence is a timeline container
type Sequence struct {
	ID     string
	Name   string
	Tracks []Track
}

// NewSequence creates an empty sequence
func NewSequence(name string) *Sequence {
	return &Sequence{
		ID:   uuid.New().String(),
		Name: name,
	}
}

// Duration returns the timeline-out of the latest-ending clip
func (s *Sequence) Duration() float64 {
	var max float64
	for i := range s.Tracks {
		for j := range s.Tracks[i].Clips {
			if out := s.Tracks[i].Clips[j].Place.TimelineOutSec(); out > max {
				max = out
			}
		}
	}
	return max
}

// Asset describes a media source for audio-bearing kinds
type Asset struct {
	ID         string
	URI        string
	SampleRate int
	Channels   int
	// Codec tag: "wav", "mp3", "flac", "vorbis", "opus".
	// Empty means sniff from the URI extension.
	Codec string
}

// NewAsset creates an asset record for a URI
func NewAsset(uri, codec string) Asset {
	return Asset{
		ID:    uuid.New().String(),
		URI:   uri,
		Codec: codec,
	}
}

// Package pianoroll converts between Standard MIDI Files and binary piano-roll
// feature vectors of shape [frames, 2*notespan].
//
// Columns [0, notespan) hold the isOn flag of each pitch and columns
// [notespan, 2*notespan) hold the isOnset flag.
package pianoroll

import (
	"errors"
	"fmt"
)

const (
	DefaultLowBound         = 36
	DefaultHighBound        = 85
	DefaultTickScale        = 60
	DefaultOutputVelocity   = 80
	DefaultOutputResolution = 220

	// OutputExt is appended to the stem given to DecodeFile.
	OutputExt = ".midi"
)

var (
	// ErrUnsupportedMeter is returned together with the frames encoded so far
	// when a time signature with a numerator other than 2 or 4 is found.
	ErrUnsupportedMeter = errors.New("unsupported time signature")
	// ErrShape is returned when a feature vector does not match the pitch window.
	ErrShape = errors.New("feature vector shape does not match pitch window")
	// ErrTimeFormat is returned for SMPTE timed files or unusably small resolutions.
	ErrTimeFormat = errors.New("unsupported MIDI time format")
)

// Note is the pair of flags stored for one pitch in one frame
type Note struct {
	On    bool
	Onset bool
}

// Frame is one sampled time step over the pitch window
type Frame []Note

// Codec encodes MIDI into piano rolls and decodes them back
type Codec struct {
	LowBound         int // inclusive
	HighBound        int // exclusive
	TickScale        int // MIDI ticks per frame when decoding
	OutputVelocity   uint8
	OutputResolution uint16
	MaxLength        int // stop encoding once more frames than this exist; 0 disables
}

// New creates a codec with the default pitch window and output settings
func New() *Codec {
	return &Codec{
		LowBound:         DefaultLowBound,
		HighBound:        DefaultHighBound,
		TickScale:        DefaultTickScale,
		OutputVelocity:   DefaultOutputVelocity,
		OutputResolution: DefaultOutputResolution,
	}
}

// Notespan is the number of pitches in the window
func (c *Codec) Notespan() int {
	return c.HighBound - c.LowBound
}

// Width is the number of columns of an encoded sequence
func (c *Codec) Width() int {
	return 2 * c.Notespan()
}

// Validate checks the codec settings
func (c *Codec) Validate() error {
	if c.LowBound < 0 || c.HighBound > 128 || c.LowBound >= c.HighBound {
		return fmt.Errorf("invalid pitch window [%d, %d)", c.LowBound, c.HighBound)
	}
	if c.TickScale <= 0 {
		return fmt.Errorf("tick scale must be positive, got %d", c.TickScale)
	}
	if c.OutputVelocity == 0 || c.OutputVelocity > 127 {
		return fmt.Errorf("output velocity out of range: %d", c.OutputVelocity)
	}
	if c.OutputResolution == 0 {
		return errors.New("output resolution must be positive")
	}
	if c.MaxLength < 0 {
		return fmt.Errorf("max length must not be negative, got %d", c.MaxLength)
	}
	return nil
}

func (c *Codec) inWindow(key uint8) bool {
	return int(key) >= c.LowBound && int(key) < c.HighBound
}

func (c *Codec) blankFrame() Frame {
	return make(Frame, c.Notespan())
}

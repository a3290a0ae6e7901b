package pianoroll

import (
	"bytes"
	"fmt"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gorgonia.org/tensor"
)

// EncodeFile reads a MIDI file and encodes it into a piano roll
func (c *Codec) EncodeFile(filename string) (*tensor.Dense, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return c.Encode(data)
}

// Encode parses MIDI data into a [frames, 2*notespan] piano roll.
//
// When an unsupported meter stops parsing early the frames produced so far are
// returned together with ErrUnsupportedMeter.
func (c *Codec) Encode(data []byte) (*tensor.Dense, error) {
	frames, err := c.EncodeFrames(data)
	if frames == nil {
		return nil, err
	}
	return c.Tensor(frames), err
}

// EncodeFrames parses MIDI data into frames.
//
// A frame is emitted at every tick where tick % (res/4) == res/8, copying the
// sustained notes of the previous one. Frame 0 exists before the first such
// boundary. Events always modify the most recent frame.
func (c *Codec) EncodeFrames(data []byte) ([]Frame, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrTimeFormat, s.TimeFormat)
	}
	resolution := int64(mt.Resolution())
	step, offset := resolution/4, resolution/8
	if offset == 0 {
		return nil, fmt.Errorf("%w: resolution %d", ErrTimeFormat, resolution)
	}

	cursors := make([]*cursor, len(s.Tracks))
	for i, track := range s.Tracks {
		cursors[i] = newCursor(track)
	}

	state := c.blankFrame()
	frames := []Frame{state}

	for tick := int64(0); ; tick++ {
		if tick%step == offset {
			next := c.blankFrame()
			for i, note := range state {
				next[i].On = note.On
			}
			state = next
			frames = append(frames, state)
		}

		for _, cur := range cursors {
			for cur.due() {
				if err := c.apply(state, cur.pop()); err != nil {
					return frames, err
				}
			}
			cur.tickDown()
		}

		if allDone(cursors) {
			break
		}
		if c.MaxLength > 0 && len(frames) > c.MaxLength {
			break
		}
	}

	return frames, nil
}

// apply updates the current frame for one event
func (c *Codec) apply(state Frame, msg smf.Message) error {
	// Time signature meta message (FF 58 04 nn dd cc bb)
	if len(msg) >= 4 && msg[0] == 0xFF && msg[1] == 0x58 {
		if numerator := msg[3]; numerator != 2 && numerator != 4 {
			return fmt.Errorf("%w: %d/x", ErrUnsupportedMeter, numerator)
		}
		return nil
	}

	if len(msg) < 3 {
		return nil
	}
	status, key, velocity := msg[0], msg[1], msg[2]
	isNoteOn := status >= 0x90 && status <= 0x9F
	isNoteOff := status >= 0x80 && status <= 0x8F
	if !isNoteOn && !isNoteOff {
		return nil
	}
	if !c.inWindow(key) {
		return nil
	}

	idx := int(key) - c.LowBound
	if isNoteOn && velocity > 0 {
		state[idx] = Note{On: true, Onset: true}
	} else {
		state[idx] = Note{}
	}
	return nil
}

// cursor walks one track, counting down the delta of the next pending event
type cursor struct {
	events smf.Track
	pos    int
	wait   int64
}

func newCursor(track smf.Track) *cursor {
	c := &cursor{events: track}
	if len(track) > 0 {
		c.wait = int64(track[0].Delta)
	}
	return c
}

func (c *cursor) done() bool {
	return c.pos >= len(c.events)
}

func (c *cursor) due() bool {
	return !c.done() && c.wait == 0
}

func (c *cursor) pop() smf.Message {
	msg := c.events[c.pos].Message
	c.pos++
	if !c.done() {
		c.wait = int64(c.events[c.pos].Delta)
	}
	return msg
}

func (c *cursor) tickDown() {
	if !c.done() {
		c.wait--
	}
}

func allDone(cursors []*cursor) bool {
	for _, c := range cursors {
		if !c.done() {
			return false
		}
	}
	return true
}

// Decode renders a piano roll as single track MIDI data.
// fv may be [T, 2*notespan] or [T, notespan, 2]; values >= 0.5 count as set.
func (c *Codec) Decode(fv *tensor.Dense) ([]byte, error) {
	frames, err := c.Frames(fv)
	if err != nil {
		return nil, err
	}
	return c.DecodeFrames(frames)
}

// DecodeFrames renders frames as single track MIDI data.
//
// A note is released when it stops sounding and struck when it starts
// sounding or shows a fresh onset while held. Releases are written before
// strikes within a frame. A silent frame is appended so every held note ends.
func (c *Codec) DecodeFrames(frames []Frame) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(c.OutputResolution)

	var track smf.Track
	channel := uint8(0)

	// Deliberate: without this closing frame, notes held in the last frame
	// would never get a note off. The extra frame adds one step of length.
	frames = append(frames[:len(frames):len(frames)], c.blankFrame())
	prev := c.blankFrame()
	lastEvent := 0

	for t, cur := range frames {
		if len(cur) != len(prev) {
			return nil, fmt.Errorf("%w: frame %d has %d notes, want %d", ErrShape, t, len(cur), len(prev))
		}

		var offs, ons []int
		for i := range cur {
			switch {
			case prev[i].On && !cur[i].On:
				offs = append(offs, i)
			case prev[i].On && cur[i].Onset:
				ons = append(ons, i)
			case !prev[i].On && cur[i].On:
				ons = append(ons, i)
			}
		}

		for _, i := range offs {
			track.Add(uint32((t-lastEvent)*c.TickScale), midi.NoteOff(channel, uint8(c.LowBound+i)))
			lastEvent = t
		}
		for _, i := range ons {
			track.Add(uint32((t-lastEvent)*c.TickScale), midi.NoteOn(channel, uint8(c.LowBound+i), c.OutputVelocity))
			lastEvent = t
		}

		prev = cur
	}

	track.Close(1)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFile writes a piano roll to <stem>.midi and returns the path
func (c *Codec) DecodeFile(fv *tensor.Dense, stem string) (string, error) {
	data, err := c.Decode(fv)
	if err != nil {
		return "", err
	}
	path := OutputPath(stem)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write MIDI file: %w", err)
	}
	return path, nil
}

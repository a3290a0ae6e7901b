// Package fixture builds small Standard MIDI Files for tests.
package fixture

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is a message at an absolute tick
type Event struct {
	Tick uint32
	Msg  []byte
}

// On is a note-on at tick
func On(tick uint32, key uint8) Event {
	return Event{Tick: tick, Msg: midi.NoteOn(0, key, 100)}
}

// Off is a note-off at tick
func Off(tick uint32, key uint8) Event {
	return Event{Tick: tick, Msg: midi.NoteOff(0, key)}
}

// Meter is a time signature meta event at tick
func Meter(tick uint32, numerator, denominatorPow uint8) Event {
	return Event{Tick: tick, Msg: []byte{0xFF, 0x58, 0x04, numerator, denominatorPow, 0x18, 0x08}}
}

// Note is a note held from On to Off
type Note struct {
	Key     uint8
	On, Off uint32
}

// Notes expands held notes into sorted events
func Notes(notes ...Note) []Event {
	var events []Event
	for _, n := range notes {
		events = append(events, On(n.On, n.Key), Off(n.Off, n.Key))
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })
	return events
}

// SMF encodes one track per event list, each closed at its last event
func SMF(t testing.TB, resolution uint16, tracks ...[]Event) []byte {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(resolution)

	for _, events := range tracks {
		var track smf.Track
		var last uint32
		for _, ev := range events {
			track.Add(ev.Tick-last, ev.Msg)
			last = ev.Tick
		}
		track.Close(0)
		if err := s.Add(track); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("failed to write MIDI: %v", err)
	}
	return buf.Bytes()
}

// Write stores data under dir and returns the path
func Write(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

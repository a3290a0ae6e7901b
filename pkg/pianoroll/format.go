package pianoroll

import (
	"path/filepath"
	"strings"
)

// IsMIDIFile reports whether the file name carries a MIDI extension
func IsMIDIFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi":
		return true
	default:
		return false
	}
}

// IsMIDIData checks for the "MThd" header chunk
func IsMIDIData(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "MThd"
}

// OutputPath returns the file DecodeFile writes for a stem. The extension is
// always appended, even to a stem that already carries one.
func OutputPath(stem string) string {
	return stem + OutputExt
}

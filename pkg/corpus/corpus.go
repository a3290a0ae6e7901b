// Package corpus loads a directory of MIDI files into piano roll sequences
// and cuts them into training windows.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"gopkg.in/cheggaaa/pb.v1"
	"gorgonia.org/tensor"

	"github.com/james-see/neuralnotes/pkg/pianoroll"
)

// ErrInvalidDirectory is returned for an empty, missing or non-directory path
var ErrInvalidDirectory = errors.New("not a readable directory")

// Sequence is one encoded song
type Sequence struct {
	Path string
	Data *tensor.Dense // [frames, 2*notespan]
}

// Frames is the number of encoded frames
func (s Sequence) Frames() int {
	return s.Data.Shape()[0]
}

// Corpus is an ordered set of sequences
type Corpus struct {
	Sequences []Sequence
	Skipped   int // files that failed to encode
	Rejected  int // files at or below the minimum length
}

// Len is the number of accepted sequences
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Sequences)
}

// Frames is the total frame count over all sequences
func (c *Corpus) Frames() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, s := range c.Sequences {
		total += s.Frames()
	}
	return total
}

// Loader turns a directory into a Corpus
type Loader struct {
	Codec     *pianoroll.Codec
	MinLength int       // sequences need strictly more frames than this
	Progress  io.Writer // progress bar output, nil disables it
}

// Files lists the MIDI files directly inside dir in name order
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !pianoroll.IsMIDIFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Load encodes every MIDI file in dir. A file that fails to encode is logged
// and skipped. The returned corpus is never nil.
func (l *Loader) Load(ctx context.Context, dir string) (*Corpus, error) {
	c := &Corpus{}
	if dir == "" {
		return c, ErrInvalidDirectory
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return c, fmt.Errorf("%w: %s", ErrInvalidDirectory, dir)
	}

	files, err := Files(dir)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidDirectory, err)
	}

	var bar *pb.ProgressBar
	if l.Progress != nil && len(files) > 0 {
		bar = pb.New(len(files))
		bar.Output = l.Progress
		bar.ShowTimeLeft = false
		bar.Prefix("Loading ")
		bar.Start()
		defer bar.Finish()
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return c, err
		}

		seq, err := l.encode(path)
		if bar != nil {
			bar.Increment()
		}
		if seq == nil {
			c.Skipped++
			log.WithFields(log.Fields{"file": path, "error": err}).Warn("skipping file")
			continue
		}
		if err != nil {
			log.WithFields(log.Fields{"file": path, "frames": seq.Frames(), "error": err}).Info("using partial sequence")
		}
		if seq.Frames() <= l.MinLength {
			c.Rejected++
			log.WithFields(log.Fields{"file": path, "frames": seq.Frames(), "min": l.MinLength}).Debug("sequence too short")
			continue
		}
		c.Sequences = append(c.Sequences, *seq)
	}

	log.WithFields(log.Fields{
		"dir":      dir,
		"loaded":   c.Len(),
		"skipped":  c.Skipped,
		"rejected": c.Rejected,
	}).Info("corpus loaded")
	return c, nil
}

// encode runs the codec on one file. A partial sequence cut short by an
// unsupported meter is returned alongside its error; any other failure,
// including a panic, returns no sequence.
func (l *Loader) encode(path string) (seq *Sequence, err error) {
	defer func() {
		if r := recover(); r != nil {
			seq, err = nil, fmt.Errorf("panic while encoding: %v", r)
		}
	}()

	data, err := l.Codec.EncodeFile(path)
	switch {
	case err == nil:
	case errors.Is(err, pianoroll.ErrUnsupportedMeter) && data != nil:
	default:
		return nil, err
	}
	return &Sequence{Path: path, Data: data}, err
}

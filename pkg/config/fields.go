package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names a setting that can be edited as text
type Field string

const (
	FieldTimesteps     Field = "timesteps"
	FieldHiddenNodes   Field = "hidden-nodes"
	FieldEpochs        Field = "epochs"
	FieldBatchSize     Field = "batch-size"
	FieldFirstBatchRow Field = "first-batch-row"
	FieldLearnRate     Field = "learn-rate"
	FieldSampleCount   Field = "sample-count"
	FieldTickScale     Field = "tick-scale"
	FieldLowBound      Field = "low-bound"
	FieldHighBound     Field = "high-bound"
	FieldMinLength     Field = "min-length"
	FieldMaxLength     Field = "max-length"
	FieldSeed          Field = "seed"
	FieldModelCacheDir Field = "model-cache-dir"
	FieldSampleDir     Field = "sample-dir"
)

// Fields lists every editable field in display order
var Fields = []Field{
	FieldTimesteps,
	FieldHiddenNodes,
	FieldEpochs,
	FieldBatchSize,
	FieldFirstBatchRow,
	FieldLearnRate,
	FieldSampleCount,
	FieldTickScale,
	FieldLowBound,
	FieldHighBound,
	FieldMinLength,
	FieldMaxLength,
	FieldSeed,
	FieldModelCacheDir,
	FieldSampleDir,
}

var usage = map[Field]string{
	FieldTimesteps:     "frames per training example",
	FieldHiddenNodes:   "hidden units of the machine",
	FieldEpochs:        "passes over the corpus",
	FieldBatchSize:     "training windows per update",
	FieldFirstBatchRow: "first window used by the batch loop",
	FieldLearnRate:     "contrastive divergence learning rate",
	FieldSampleCount:   "samples drawn per generate run",
	FieldTickScale:     "MIDI ticks per frame when writing samples",
	FieldLowBound:      "lowest MIDI pitch kept (inclusive)",
	FieldHighBound:     "highest MIDI pitch kept (exclusive)",
	FieldMinLength:     "sequences need more frames than this (0 = 2*timesteps)",
	FieldMaxLength:     "stop encoding past this many frames (0 = 3*timesteps, -1 = no cap)",
	FieldSeed:          "random seed (0 = clock)",
	FieldModelCacheDir: "directory the trained model is always saved to",
	FieldSampleDir:     "default directory for generated samples",
}

// Usage describes a field
func Usage(f Field) string {
	return usage[f]
}

// Get renders a field as text
func (c Config) Get(f Field) string {
	switch f {
	case FieldTimesteps:
		return strconv.Itoa(c.Timesteps)
	case FieldHiddenNodes:
		return strconv.Itoa(c.HiddenNodes)
	case FieldEpochs:
		return strconv.Itoa(c.Epochs)
	case FieldBatchSize:
		return strconv.Itoa(c.BatchSize)
	case FieldFirstBatchRow:
		return strconv.Itoa(c.FirstBatchRow)
	case FieldLearnRate:
		return strconv.FormatFloat(c.LearnRate, 'g', -1, 64)
	case FieldSampleCount:
		return strconv.Itoa(c.SampleCount)
	case FieldTickScale:
		return strconv.Itoa(c.TickScale)
	case FieldLowBound:
		return strconv.Itoa(c.LowBound)
	case FieldHighBound:
		return strconv.Itoa(c.HighBound)
	case FieldMinLength:
		return strconv.Itoa(c.MinLength)
	case FieldMaxLength:
		return strconv.Itoa(c.MaxLength)
	case FieldSeed:
		return strconv.FormatInt(c.Seed, 10)
	case FieldModelCacheDir:
		return c.ModelCacheDir
	case FieldSampleDir:
		return c.SampleDir
	default:
		return ""
	}
}

// Set parses text into a field. When the text is rejected the config is left
// unchanged and the error wraps ErrInvalidField; callers should show Get(f)
// again.
func (c *Config) Set(f Field, text string) error {
	return c.Apply(map[Field]string{f: text})
}

// Apply parses several fields at once and validates the result a single time,
// so a change such as moving both pitch bounds does not depend on the order
// the fields are visited in. Nothing is changed if any field is rejected.
func (c *Config) Apply(changes map[Field]string) error {
	next := *c
	for f, text := range changes {
		if err := next.parse(f, text); err != nil {
			return err
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}

	*c = next
	return nil
}

func (c *Config) parse(f Field, text string) error {
	text = strings.TrimSpace(text)

	var err error
	switch f {
	case FieldTimesteps:
		c.Timesteps, err = parseInt(text)
	case FieldHiddenNodes:
		c.HiddenNodes, err = parseInt(text)
	case FieldEpochs:
		c.Epochs, err = parseInt(text)
	case FieldBatchSize:
		c.BatchSize, err = parseInt(text)
	case FieldFirstBatchRow:
		c.FirstBatchRow, err = parseInt(text)
	case FieldLearnRate:
		c.LearnRate, err = strconv.ParseFloat(text, 64)
	case FieldSampleCount:
		c.SampleCount, err = parseInt(text)
	case FieldTickScale:
		c.TickScale, err = parseInt(text)
	case FieldLowBound:
		c.LowBound, err = parseInt(text)
	case FieldHighBound:
		c.HighBound, err = parseInt(text)
	case FieldMinLength:
		c.MinLength, err = parseInt(text)
	case FieldMaxLength:
		c.MaxLength, err = parseInt(text)
	case FieldSeed:
		c.Seed, err = strconv.ParseInt(text, 10, 64)
	case FieldModelCacheDir:
		c.ModelCacheDir = text
	case FieldSampleDir:
		c.SampleDir = text
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidField, f)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidField, f, text)
	}
	return nil
}

// Package config holds the settings shared by the CLI, the terminal UI and
// the HTTP API.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/james-see/neuralnotes/pkg/pianoroll"
	"github.com/james-see/neuralnotes/pkg/rbm"
)

const (
	DefaultModelCacheDir = "data/tmp_model"
	DefaultSampleDir     = "sampleout"
)

// ErrInvalidField is returned when a field is unknown or its text is rejected
var ErrInvalidField = errors.New("invalid config field")

// Config is the full set of training and generation settings
type Config struct {
	Timesteps     int     `yaml:"timesteps" json:"timesteps"`
	HiddenNodes   int     `yaml:"hidden_nodes" json:"hiddenNodes"`
	Epochs        int     `yaml:"epochs" json:"epochs"`
	BatchSize     int     `yaml:"batch_size" json:"batchSize"`
	FirstBatchRow int     `yaml:"first_batch_row" json:"firstBatchRow"`
	LearnRate     float64 `yaml:"learn_rate" json:"learnRate"`
	SampleCount   int     `yaml:"sample_count" json:"sampleCount"`
	TickScale     int     `yaml:"tick_scale" json:"tickScale"`
	LowBound      int     `yaml:"low_bound" json:"lowBound"`
	HighBound     int     `yaml:"high_bound" json:"highBound"`
	MinLength     int     `yaml:"min_length" json:"minLength"` // 0 means 2*timesteps
	MaxLength     int     `yaml:"max_length" json:"maxLength"` // 0 means 3*timesteps, negative disables the cap
	Seed          int64   `yaml:"seed" json:"seed"`            // 0 seeds from the clock

	ModelCacheDir string `yaml:"model_cache_dir" json:"modelCacheDir"`
	SampleDir     string `yaml:"sample_dir" json:"sampleDir"`
}

// Default returns the stock settings
func Default() Config {
	model := rbm.DefaultConf(pianoroll.DefaultHighBound - pianoroll.DefaultLowBound)
	return Config{
		Timesteps:     model.Timesteps,
		HiddenNodes:   model.HiddenNodes,
		Epochs:        75,
		BatchSize:     100,
		FirstBatchRow: 1,
		LearnRate:     0.005,
		SampleCount:   5,
		TickScale:     pianoroll.DefaultTickScale,
		LowBound:      pianoroll.DefaultLowBound,
		HighBound:     pianoroll.DefaultHighBound,
		ModelCacheDir: DefaultModelCacheDir,
		SampleDir:     DefaultSampleDir,
	}
}

// Notespan is the width of the pitch window
func (c Config) Notespan() int {
	return c.HighBound - c.LowBound
}

// EffectiveMinLength resolves the minimum sequence length
func (c Config) EffectiveMinLength() int {
	if c.MinLength > 0 {
		return c.MinLength
	}
	return 2 * c.Timesteps
}

// EffectiveMaxLength resolves the encoding cap, 0 meaning uncapped
func (c Config) EffectiveMaxLength() int {
	switch {
	case c.MaxLength > 0:
		return c.MaxLength
	case c.MaxLength < 0:
		return 0
	default:
		return 3 * c.Timesteps
	}
}

// Codec builds a piano roll codec for these settings
func (c Config) Codec() *pianoroll.Codec {
	codec := pianoroll.New()
	codec.LowBound = c.LowBound
	codec.HighBound = c.HighBound
	codec.TickScale = c.TickScale
	codec.MaxLength = c.EffectiveMaxLength()
	return codec
}

// Model returns the machine configuration for these settings
func (c Config) Model() rbm.Config {
	conf := rbm.DefaultConf(c.Notespan())
	conf.Timesteps = c.Timesteps
	conf.HiddenNodes = c.HiddenNodes
	conf.Seed = c.Seed
	return conf
}

// Validate checks every field
func (c Config) Validate() error {
	positive := []struct {
		field Field
		value int
	}{
		{FieldTimesteps, c.Timesteps},
		{FieldHiddenNodes, c.HiddenNodes},
		{FieldEpochs, c.Epochs},
		{FieldBatchSize, c.BatchSize},
		{FieldSampleCount, c.SampleCount},
		{FieldTickScale, c.TickScale},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidField, p.field, p.value)
		}
	}
	if math.IsNaN(c.LearnRate) || math.IsInf(c.LearnRate, 0) || c.LearnRate <= 0 {
		return fmt.Errorf("%w: %s must be a positive number, got %v", ErrInvalidField, FieldLearnRate, c.LearnRate)
	}
	if c.FirstBatchRow < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidField, FieldFirstBatchRow, c.FirstBatchRow)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidField, FieldMinLength, c.MinLength)
	}
	if c.LowBound < 0 || c.HighBound > 128 || c.LowBound >= c.HighBound {
		return fmt.Errorf("%w: pitch window [%d, %d)", ErrInvalidField, c.LowBound, c.HighBound)
	}
	if c.ModelCacheDir == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidField, FieldModelCacheDir)
	}
	if c.SampleDir == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidField, FieldSampleDir)
	}
	return nil
}

// Load reads a YAML file over the defaults
func Load(path string) (Config, error) {
	conf := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

// Save writes the settings as YAML
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func parseInt(text string) (int, error) {
	return strconv.Atoi(text)
}

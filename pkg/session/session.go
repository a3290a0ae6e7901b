// Package session drives loading, training and generation for one user of
// the application. The CLI, the terminal UI and the HTTP API all talk to a
// Session.
package session

import (
	"context"
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/corpus"
)

// State is where a session is in its lifecycle
type State int

const (
	Uninitialized State = iota
	Configured
	CorpusLoaded
	Trained
	Generated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case CorpusLoaded:
		return "corpus-loaded"
	case Trained:
		return "trained"
	case Generated:
		return "generated"
	default:
		return "unknown"
	}
}

// Status lines shown to the user
const (
	StatusNoData         = "No data available"
	StatusLoading        = "Loading dataset..."
	StatusLoaded         = "Dataset loaded"
	StatusLoadFailed     = "Dataset loading failed"
	StatusTraining       = "Training..."
	StatusTrained        = "Training complete"
	StatusTrainFailed    = "Training failed"
	StatusGenerating     = "Generating samples..."
	StatusGenerated      = "Finished generating samples"
	StatusGenerateFailed = "Sample generation failed"
	StatusReady          = "Ready"
	StatusNoModel        = "No model available"
)

var (
	ErrNotConfigured = errors.New("session is not configured")
	ErrEmptyCorpus   = errors.New("no training data loaded")
	ErrNoModel       = errors.New("no model available")
	ErrBusy          = errors.New("another run is in progress")
)

// Session owns the configuration, the loaded corpus and the latest model.
// At most one LoadCorpus, Train or Generate runs at a time.
type Session struct {
	run sync.Mutex // held for the whole of a load, train or generate run

	mu          sync.Mutex // guards the fields below
	conf        config.Config
	state       State
	trainStatus string
	genStatus   string
	corpus      *corpus.Corpus
	corpusDir   string
	hasModel    bool

	progress io.Writer
}

// Option configures a Session
type Option func(*Session)

// WithProgress sends progress bars for loading and training to w
func WithProgress(w io.Writer) Option {
	return func(s *Session) {
		s.progress = w
	}
}

// New creates a configured session
func New(conf config.Config, opts ...Option) (*Session, error) {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Configure(conf); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure validates and installs new settings. Changing anything that
// affects encoding drops the loaded corpus; it is reloaded from the same
// directory by the next Train.
func (s *Session) Configure(conf config.Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	if !s.run.TryLock() {
		return ErrBusy
	}
	defer s.run.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.state == Uninitialized
	old := s.conf
	s.conf = conf

	if first {
		s.state = Configured
		s.trainStatus = StatusNoData
		if s.cachedModelLocked() {
			s.genStatus = StatusReady
		} else {
			s.genStatus = StatusNoModel
		}
		return nil
	}

	if s.corpus != nil && encodingChanged(old, conf) {
		log.WithFields(log.Fields{
			"timesteps": conf.Timesteps,
			"window":    []int{conf.LowBound, conf.HighBound},
		}).Info("encoding settings changed, dropping loaded corpus")
		s.corpus = nil
		s.trainStatus = StatusNoData
		if s.state == CorpusLoaded {
			s.state = Configured
		}
	}
	return nil
}

func encodingChanged(a, b config.Config) bool {
	return a.Timesteps != b.Timesteps ||
		a.LowBound != b.LowBound ||
		a.HighBound != b.HighBound ||
		a.EffectiveMinLength() != b.EffectiveMinLength() ||
		a.EffectiveMaxLength() != b.EffectiveMaxLength()
}

// Config returns the current settings
func (s *Session) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conf
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TrainStatus is the latest loading or training status line
func (s *Session) TrainStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trainStatus
}

// GenerateStatus is the latest generation status line
func (s *Session) GenerateStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genStatus
}

// CorpusSize is the number of loaded sequences
func (s *Session) CorpusSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus.Len()
}

// CorpusDir is the directory of the last load attempt
func (s *Session) CorpusDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpusDir
}

// HasCachedModel reports whether the model cache holds a bundle
func (s *Session) HasCachedModel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedModelLocked()
}

func (s *Session) cachedModelLocked() bool {
	return isFile(cachePath(s.conf))
}

func (s *Session) setTrainStatus(status string) {
	s.mu.Lock()
	s.trainStatus = status
	s.mu.Unlock()
}

func (s *Session) setGenStatus(status string) {
	s.mu.Lock()
	s.genStatus = status
	s.mu.Unlock()
}

// LoadCorpus replaces the corpus with the MIDI files in dir and returns how
// many sequences were kept.
func (s *Session) LoadCorpus(ctx context.Context, dir string) (int, error) {
	if !s.run.TryLock() {
		return 0, ErrBusy
	}
	defer s.run.Unlock()
	return s.loadCorpus(ctx, dir)
}

// loadCorpus needs s.run held
func (s *Session) loadCorpus(ctx context.Context, dir string) (int, error) {
	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return 0, ErrNotConfigured
	}
	conf := s.conf
	s.corpusDir = dir
	s.trainStatus = StatusLoading
	s.mu.Unlock()

	loader := &corpus.Loader{
		Codec:     conf.Codec(),
		MinLength: conf.EffectiveMinLength(),
		Progress:  s.progress,
	}
	c, err := loader.Load(ctx, dir)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = c
	if err != nil || c.Len() == 0 {
		s.trainStatus = StatusLoadFailed
		if s.state == CorpusLoaded {
			s.state = Configured
		}
		log.WithFields(log.Fields{"dir": dir, "error": err}).Warn("dataset loading failed")
		return c.Len(), err
	}

	s.trainStatus = StatusLoaded
	if s.state == Configured {
		s.state = CorpusLoaded
	}
	return c.Len(), nil
}

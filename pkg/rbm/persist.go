package rbm

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// Signature tags every persisted bundle
	Signature = "RBMNet"
	// FileName is the bundle name inside a model directory
	FileName = "rbm.gob"

	bundleVersion = 1
)

// ErrSignature is returned when a stream is not an RBMNet bundle
var ErrSignature = errors.New("not an RBMNet model")

type bundle struct {
	Signature string
	Version   int
	Timesteps int
	Notespan  int
	W         *tensor.Dense
	VBias     *tensor.Dense
	HBias     *tensor.Dense
}

// Save writes the parameters and their dimensions as one gob bundle
func (m *Model) Save(w io.Writer) error {
	b := bundle{
		Signature: Signature,
		Version:   bundleVersion,
		Timesteps: m.Timesteps,
		Notespan:  m.Notespan,
		W:         m.W,
		VBias:     m.VBias,
		HBias:     m.HBias,
	}
	if err := gob.NewEncoder(w).Encode(&b); err != nil {
		return errors.Wrap(err, "encoding model")
	}
	return nil
}

// Load reads a bundle written by Save and checks it is consistent
func Load(r io.Reader) (*Model, error) {
	var b bundle
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, errors.Wrap(ErrSignature, err.Error())
	}
	if b.Signature != Signature {
		return nil, errors.Wrapf(ErrSignature, "signature %q", b.Signature)
	}
	if b.Version != bundleVersion {
		return nil, errors.Errorf("unsupported model version %d", b.Version)
	}
	if b.W == nil || b.VBias == nil || b.HBias == nil {
		return nil, errors.New("model bundle is missing parameters")
	}

	m := &Model{
		Timesteps: b.Timesteps,
		Notespan:  b.Notespan,
		W:         b.W,
		VBias:     b.VBias,
		HBias:     b.HBias,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveFile writes the bundle to path, creating parent directories. The file is
// replaced in one rename so readers never see a partial model.
func (m *Model) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}

	f, err := os.CreateTemp(dir, ".rbm-*")
	if err != nil {
		return errors.Wrapf(err, "creating temporary file in %s", dir)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "moving model to %s", path)
	}
	return nil
}

// LoadFile reads a bundle from path
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening model")
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return m, nil
}

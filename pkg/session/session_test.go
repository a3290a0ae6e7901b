package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/neuralnotes/internal/fixture"
	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/rbm"
)

// testConf keeps the machine small. 15 timesteps over 49 pitches gives 1470
// visible units.
func testConf(t *testing.T) config.Config {
	root := t.TempDir()
	conf := config.Default()
	conf.Timesteps = 15
	conf.HiddenNodes = 8
	conf.Epochs = 1
	conf.MinLength = 32
	conf.MaxLength = -1
	conf.SampleCount = 3
	conf.Seed = 7
	conf.ModelCacheDir = filepath.Join(root, "cache")
	conf.SampleDir = filepath.Join(root, "samples")
	return conf
}

// songs writes a.mid with 40 frames and b.mid with 10 frames
func songs(t *testing.T) string {
	dir := t.TempDir()
	fixture.Write(t, dir, "a.mid", fixture.SMF(t, 480, fixture.Notes(
		fixture.Note{Key: 60, On: 0, Off: 4680},
		fixture.Note{Key: 64, On: 480, Off: 1440},
	)))
	fixture.Write(t, dir, "b.mid", fixture.SMF(t, 480, fixture.Notes(
		fixture.Note{Key: 60, On: 0, Off: 1080},
	)))
	return dir
}

func newSession(t *testing.T, conf config.Config) *Session {
	s, err := New(conf)
	require.NoError(t, err)
	return s
}

// storeModel saves a machine whose samples are all ones (on) or all zeros
func storeModel(t *testing.T, conf config.Config, path string, on bool) {
	m, err := rbm.New(conf.Model())
	require.NoError(t, err)
	m.W.Zero()
	require.NoError(t, m.HBias.Memset(float32(-100)))
	vb := float32(-100)
	if on {
		vb = 100
	}
	require.NoError(t, m.VBias.Memset(vb))
	require.NoError(t, m.SaveFile(path))
}

func TestNewSession(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)

	assert.Equal(t, Configured, s.State())
	assert.Equal(t, StatusNoData, s.TrainStatus())
	assert.Equal(t, StatusNoModel, s.GenerateStatus())
	assert.False(t, s.HasCachedModel())

	storeModel(t, conf, cachePath(conf), true)
	s = newSession(t, conf)
	assert.Equal(t, StatusReady, s.GenerateStatus())
	assert.True(t, s.HasCachedModel())

	bad := conf
	bad.Epochs = 0
	_, err := New(bad)
	assert.True(t, errors.Is(err, config.ErrInvalidField), "got %v", err)
}

func TestUninitialized(t *testing.T) {
	var s Session
	ctx := context.Background()

	_, err := s.LoadCorpus(ctx, t.TempDir())
	assert.Equal(t, ErrNotConfigured, err)
	_, err = s.Train(ctx, TrainRequest{})
	assert.Equal(t, ErrNotConfigured, err)
	_, err = s.Generate(ctx, GenerateRequest{})
	assert.Equal(t, ErrNotConfigured, err)
	assert.Equal(t, Uninitialized, s.State())
}

func TestTrainAndGenerate(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)
	ctx := context.Background()

	n, err := s.LoadCorpus(ctx, songs(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the 40 frame song is longer than 32 frames")
	assert.Equal(t, CorpusLoaded, s.State())
	assert.Equal(t, StatusLoaded, s.TrainStatus())

	report, err := s.Train(ctx, TrainRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Epochs)
	assert.Equal(t, 1, report.Sequences)
	assert.Equal(t, 2, report.Windows, "40 frames make two windows of 15")
	assert.Equal(t, 1, report.Updates, "batches start at row 1")
	assert.Equal(t, []string{cachePath(conf)}, report.Saved)
	assert.Equal(t, Trained, s.State())
	assert.Equal(t, StatusTrained, s.TrainStatus())
	assert.Equal(t, StatusReady, s.GenerateStatus())
	assert.True(t, s.HasCachedModel())

	gen, err := s.Generate(ctx, GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, conf.SampleDir, gen.Dir)
	assert.Equal(t, cachePath(conf), gen.Model)
	assert.Equal(t, conf.SampleCount, len(gen.Written)+gen.Skipped)
	for _, path := range gen.Written {
		assert.True(t, strings.HasPrefix(filepath.Base(path), "OutputSample-"), path)
		assert.Equal(t, ".midi", filepath.Ext(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "MThd", string(data[:4]))
	}
	assert.Equal(t, Generated, s.State())
	assert.Equal(t, StatusGenerated, s.GenerateStatus())
}

func TestTrainFromFirstRow(t *testing.T) {
	conf := testConf(t)
	conf.FirstBatchRow = 0
	conf.BatchSize = 1
	conf.Epochs = 2
	s := newSession(t, conf)

	_, err := s.LoadCorpus(context.Background(), songs(t))
	require.NoError(t, err)

	report, err := s.Train(context.Background(), TrainRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Updates, "two windows, one row per batch, two epochs")
}

func TestTrainEmptyCorpus(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)

	_, err := s.Train(context.Background(), TrainRequest{})
	assert.Equal(t, ErrEmptyCorpus, err)
	assert.Equal(t, StatusTrainFailed, s.TrainStatus())
	assert.Equal(t, Configured, s.State())
	assert.NoDirExists(t, conf.ModelCacheDir)

	n, err := s.LoadCorpus(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, StatusLoadFailed, s.TrainStatus())

	_, err = s.Train(context.Background(), TrainRequest{})
	assert.True(t, errors.Is(err, ErrEmptyCorpus), "got %v", err)
	assert.NoDirExists(t, conf.ModelCacheDir)
}

func TestTrainSaveDir(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)
	_, err := s.LoadCorpus(context.Background(), songs(t))
	require.NoError(t, err)

	empty := t.TempDir()
	report, err := s.Train(context.Background(), TrainRequest{SaveDir: empty})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(empty, rbm.FileName), cachePath(conf)}, report.Saved)
	assert.FileExists(t, filepath.Join(empty, rbm.FileName))

	// no longer empty, so the cache is used alone
	report, err = s.Train(context.Background(), TrainRequest{SaveDir: empty})
	require.NoError(t, err)
	assert.Equal(t, []string{cachePath(conf)}, report.Saved)

	report, err = s.Train(context.Background(), TrainRequest{SaveDir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.Equal(t, []string{cachePath(conf)}, report.Saved)
}

func TestTrainUnwritableSaveDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	conf := testConf(t)
	s := newSession(t, conf)
	_, err := s.LoadCorpus(context.Background(), songs(t))
	require.NoError(t, err)

	locked := t.TempDir()
	require.NoError(t, os.Chmod(locked, 0500))
	t.Cleanup(func() { _ = os.Chmod(locked, 0700) })

	report, err := s.Train(context.Background(), TrainRequest{SaveDir: locked})
	require.NoError(t, err)
	assert.Equal(t, []string{cachePath(conf)}, report.Saved)
	assert.True(t, s.HasCachedModel())
	assert.Equal(t, StatusTrained, s.TrainStatus())
}

func TestSaveModelFallsBackToCache(t *testing.T) {
	conf := testConf(t)
	m, err := rbm.New(conf.Model())
	require.NoError(t, err)

	// a regular file cannot hold the bundle, whoever runs the test
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0644))

	saved, err := saveModel(m, conf, blocked)
	require.NoError(t, err)
	assert.Equal(t, []string{cachePath(conf)}, saved)
	assert.FileExists(t, cachePath(conf))

	conf.ModelCacheDir = blocked
	_, err = saveModel(m, conf, "")
	assert.Error(t, err)
}

func TestTrainCancelled(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)
	_, err := s.LoadCorpus(context.Background(), songs(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Train(ctx, TrainRequest{})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, StatusTrainFailed, s.TrainStatus())
	assert.Equal(t, CorpusLoaded, s.State())
	assert.False(t, s.HasCachedModel())
}

func TestConfigureDropsCorpus(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)
	dir := songs(t)
	_, err := s.LoadCorpus(context.Background(), dir)
	require.NoError(t, err)

	same := conf
	same.Epochs = 3
	require.NoError(t, s.Configure(same))
	assert.Equal(t, 1, s.CorpusSize(), "epochs do not affect encoding")

	changed := same
	changed.Timesteps = 10
	require.NoError(t, s.Configure(changed))
	assert.Equal(t, 0, s.CorpusSize())
	assert.Equal(t, Configured, s.State())
	assert.Equal(t, dir, s.CorpusDir())

	// the corpus is reloaded from the same directory
	report, err := s.Train(context.Background(), TrainRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Windows)
	assert.Equal(t, 3, report.Epochs)
	assert.Equal(t, 1, s.CorpusSize())
}

func TestBusy(t *testing.T) {
	s := newSession(t, testConf(t))
	ctx := context.Background()

	s.run.Lock()
	_, err := s.LoadCorpus(ctx, t.TempDir())
	assert.Equal(t, ErrBusy, err)
	_, err = s.Train(ctx, TrainRequest{})
	assert.Equal(t, ErrBusy, err)
	_, err = s.Generate(ctx, GenerateRequest{})
	assert.Equal(t, ErrBusy, err)
	assert.Equal(t, ErrBusy, s.Configure(testConf(t)))
	s.run.Unlock()

	assert.Equal(t, StatusNoData, s.TrainStatus(), "a rejected run must not change status")
}

func TestGenerateNoModel(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)

	_, err := s.Generate(context.Background(), GenerateRequest{})
	assert.True(t, errors.Is(err, ErrNoModel), "got %v", err)
	assert.Equal(t, StatusGenerateFailed, s.GenerateStatus())
	assert.NoDirExists(t, conf.SampleDir)

	_, err = s.Generate(context.Background(), GenerateRequest{ModelPath: t.TempDir()})
	assert.True(t, errors.Is(err, ErrNoModel), "got %v", err)
}

func TestGenerateSkipsSilence(t *testing.T) {
	conf := testConf(t)
	storeModel(t, conf, cachePath(conf), false)
	s := newSession(t, conf)

	report, err := s.Generate(context.Background(), GenerateRequest{})
	require.NoError(t, err)
	assert.Empty(t, report.Written)
	assert.Equal(t, conf.SampleCount, report.Skipped)

	entries, err := os.ReadDir(conf.SampleDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateExplicitPaths(t *testing.T) {
	conf := testConf(t)
	s := newSession(t, conf)

	modelDir := t.TempDir()
	storeModel(t, conf, filepath.Join(modelDir, rbm.FileName), true)
	out := t.TempDir()

	for _, modelPath := range []string{modelDir, filepath.Join(modelDir, rbm.FileName)} {
		report, err := s.Generate(context.Background(), GenerateRequest{ModelPath: modelPath, OutDir: out})
		require.NoError(t, err)
		assert.Equal(t, out, report.Dir)
		assert.Len(t, report.Written, conf.SampleCount)
		assert.Equal(t, filepath.Join(out, SampleName(2)+".midi"), report.Written[2])
	}

	// a window other than the model's is rejected
	narrow := conf
	narrow.HighBound = 60
	require.NoError(t, s.Configure(narrow))
	_, err := s.Generate(context.Background(), GenerateRequest{ModelPath: modelDir, OutDir: out})
	assert.Error(t, err)
}

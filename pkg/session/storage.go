package session

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/rbm"
)

func cachePath(conf config.Config) string {
	return filepath.Join(conf.ModelCacheDir, rbm.FileName)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) == 0
}

// saveTarget returns saveDir when a trained model may also be written there:
// an existing empty directory other than the cache. Anything else leaves the
// model in the cache only.
func saveTarget(conf config.Config, saveDir string) string {
	if saveDir == "" {
		return ""
	}
	if !isDir(saveDir) || !isEmptyDir(saveDir) {
		log.WithField("dir", saveDir).Warn("save directory must be an existing empty directory, using the model cache only")
		return ""
	}
	if abs(saveDir) == abs(conf.ModelCacheDir) {
		return ""
	}
	return saveDir
}

func abs(path string) string {
	if p, err := filepath.Abs(path); err == nil {
		return p
	}
	return filepath.Clean(path)
}

// saveModel writes the cache copy, then the copy in saveDir if one is given.
// Only the cache write is fatal. The returned paths list saveDir first.
func saveModel(m *rbm.Model, conf config.Config, saveDir string) ([]string, error) {
	cache := cachePath(conf)
	if err := m.SaveFile(cache); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}
	saved := []string{cache}
	if saveDir == "" {
		return saved, nil
	}

	path := filepath.Join(saveDir, rbm.FileName)
	if err := m.SaveFile(path); err != nil {
		log.WithError(err).WithField("dir", saveDir).Warn("could not write to the save directory, the model is in the cache only")
		return saved, nil
	}
	return append([]string{path}, saved...), nil
}

// resolveModel picks the bundle to generate from: an explicit file, a
// directory holding one, or the cache.
func resolveModel(conf config.Config, path string) (string, error) {
	switch {
	case path == "":
		path = cachePath(conf)
	case isDir(path):
		path = filepath.Join(path, rbm.FileName)
	}
	if !isFile(path) {
		return "", fmt.Errorf("%w: %s", ErrNoModel, path)
	}
	return path, nil
}

// resolveSampleDir uses dir when it exists and otherwise creates the default
// sample directory
func resolveSampleDir(conf config.Config, dir string) (string, error) {
	if dir != "" && isDir(dir) {
		return dir, nil
	}
	if dir != "" {
		log.WithField("dir", dir).Warn("sample directory does not exist, using the default")
	}
	if err := os.MkdirAll(conf.SampleDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create sample directory: %w", err)
	}
	return conf.SampleDir, nil
}

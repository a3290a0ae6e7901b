package session

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gorgonia.org/tensor"

	"github.com/james-see/neuralnotes/pkg/rbm"
)

// GenerateRequest asks for samples
type GenerateRequest struct {
	ModelPath string // bundle file or directory holding one; empty uses the cache
	OutDir    string // existing directory; empty or missing uses the default
}

// GenerateReport lists what a generation run wrote
type GenerateReport struct {
	Model   string   `json:"model"`
	Dir     string   `json:"dir"`
	Written []string `json:"written"`
	Skipped int      `json:"skipped"` // silent samples
}

// SampleName is the file stem of the i-th sample
func SampleName(i int) string {
	return fmt.Sprintf("OutputSample-%d", i)
}

// Generate loads a model, draws SampleCount samples from an all zero visible
// layer and writes every non-silent one as MIDI.
func (s *Session) Generate(ctx context.Context, req GenerateRequest) (*GenerateReport, error) {
	if !s.run.TryLock() {
		return nil, ErrBusy
	}
	defer s.run.Unlock()

	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return nil, ErrNotConfigured
	}
	conf := s.conf
	s.mu.Unlock()

	s.setGenStatus(StatusGenerating)

	report, err := s.generate(ctx, req)
	if err != nil {
		s.setGenStatus(StatusGenerateFailed)
		log.WithError(err).Error("sample generation failed")
		return nil, err
	}

	s.mu.Lock()
	s.genStatus = StatusGenerated
	if s.hasModel {
		s.state = Generated
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"model":   report.Model,
		"dir":     report.Dir,
		"written": len(report.Written),
		"skipped": report.Skipped,
		"samples": conf.SampleCount,
	}).Info("finished generating samples")
	return report, nil
}

func (s *Session) generate(ctx context.Context, req GenerateRequest) (*GenerateReport, error) {
	conf := s.Config()

	path, err := resolveModel(conf, req.ModelPath)
	if err != nil {
		return nil, err
	}
	model, err := rbm.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if model.Notespan != conf.Notespan() {
		return nil, fmt.Errorf("model covers %d pitches but the pitch window has %d", model.Notespan, conf.Notespan())
	}

	samples, err := model.Sample(conf.SampleCount, rbm.NewSampler(seed(conf)))
	if err != nil {
		return nil, err
	}

	dir, err := resolveSampleDir(conf, req.OutDir)
	if err != nil {
		return nil, err
	}

	report := &GenerateReport{Model: path, Dir: dir}
	codec := conf.Codec()
	width := model.VisibleNodes()
	data := samples.Data().([]float32)

	for i := 0; i < conf.SampleCount; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		row := data[i*width : (i+1)*width]
		if silent(row) {
			report.Skipped++
			continue
		}

		roll := tensor.New(tensor.WithShape(model.Timesteps, 2*model.Notespan), tensor.WithBacking(row))
		out, err := codec.DecodeFile(roll, filepath.Join(dir, SampleName(i)))
		if err != nil {
			return report, err
		}
		report.Written = append(report.Written, out)
	}
	return report, nil
}

func silent(row []float32) bool {
	for _, v := range row {
		if v != 0 {
			return false
		}
	}
	return true
}

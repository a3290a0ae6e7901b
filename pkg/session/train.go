package session

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/cheggaaa/pb.v1"
	"gorgonia.org/tensor"

	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/corpus"
	"github.com/james-see/neuralnotes/pkg/rbm"
)

// TrainRequest asks for a training run
type TrainRequest struct {
	// SaveDir, when an existing empty directory, receives the model in
	// addition to the model cache
	SaveDir string
}

// TrainReport summarises a completed training run
type TrainReport struct {
	Epochs              int           `json:"epochs"`
	Updates             int           `json:"updates"`
	Sequences           int           `json:"sequences"`
	Windows             int           `json:"windows"`
	ReconstructionError float32       `json:"reconstructionError"`
	Saved               []string      `json:"saved"`
	Duration            time.Duration `json:"duration"`
}

// Train builds a fresh model, runs CD-1 over the corpus for the configured
// epochs and saves it. Sequences are visited in corpus order and each one is
// windowed and cut into batches starting at FirstBatchRow. Cancellation is
// checked between updates. The session keeps its previous model unless the
// run completes.
func (s *Session) Train(ctx context.Context, req TrainRequest) (*TrainReport, error) {
	if !s.run.TryLock() {
		return nil, ErrBusy
	}
	defer s.run.Unlock()

	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return nil, ErrNotConfigured
	}
	conf, data, dir := s.conf, s.corpus, s.corpusDir
	s.mu.Unlock()

	if data == nil && dir != "" {
		if _, err := s.loadCorpus(ctx, dir); err != nil {
			log.WithError(err).Warn("reloading corpus failed")
		}
		s.mu.Lock()
		data = s.corpus
		s.mu.Unlock()
	}

	if data.Len() == 0 {
		s.setTrainStatus(StatusTrainFailed)
		return nil, ErrEmptyCorpus
	}

	s.setTrainStatus(StatusTraining)
	start := time.Now()

	model, report, err := s.fit(ctx, conf, data)
	if err == nil {
		report.Saved, err = saveModel(model, conf, saveTarget(conf, req.SaveDir))
	}
	if err != nil {
		s.setTrainStatus(StatusTrainFailed)
		log.WithError(err).Error("training failed")
		return nil, err
	}
	report.Duration = time.Since(start)

	s.mu.Lock()
	s.state = Trained
	s.hasModel = true
	s.trainStatus = StatusTrained
	s.genStatus = StatusReady
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"epochs":  report.Epochs,
		"updates": report.Updates,
		"error":   report.ReconstructionError,
		"saved":   report.Saved,
	}).Info("training complete")
	return report, nil
}

func seed(conf config.Config) int64 {
	if conf.Seed != 0 {
		return conf.Seed
	}
	return time.Now().UnixNano()
}

func (s *Session) fit(ctx context.Context, conf config.Config, data *corpus.Corpus) (*rbm.Model, *TrainReport, error) {
	mconf := conf.Model()
	mconf.Seed = seed(conf)
	model, err := rbm.New(mconf)
	if err != nil {
		return nil, nil, err
	}
	sampler := rbm.NewSampler(mconf.Seed + 1)

	var windows []*tensor.Dense
	for _, seq := range data.Sequences {
		w, ok, err := corpus.Window(seq.Data, conf.Timesteps)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", seq.Path, err)
		}
		if ok {
			windows = append(windows, w)
		}
	}

	report := &TrainReport{Sequences: data.Len()}
	for _, w := range windows {
		report.Windows += w.Shape()[0]
	}
	if len(windows) == 0 {
		return nil, nil, ErrEmptyCorpus
	}

	var bar *pb.ProgressBar
	if s.progress != nil {
		bar = pb.New(conf.Epochs)
		bar.Output = s.progress
		bar.Prefix("Training ")
		bar.Start()
		defer bar.Finish()
	}

	lr := float32(conf.LearnRate)
	for epoch := 0; epoch < conf.Epochs; epoch++ {
		for _, w := range windows {
			rows := w.Shape()[0]
			for from := conf.FirstBatchRow; from < rows; from += conf.BatchSize {
				if err := ctx.Err(); err != nil {
					return nil, nil, err
				}
				batch, err := corpus.Rows(w, from, min(from+conf.BatchSize, rows))
				if err != nil {
					return nil, nil, err
				}
				if err := model.Update(batch, lr, sampler); err != nil {
					return nil, nil, err
				}
				report.Updates++
			}
		}
		report.Epochs++
		if bar != nil {
			bar.Increment()
		}

		if log.IsLevelEnabled(log.DebugLevel) {
			if mse, err := model.ReconstructionError(windows[0], sampler); err == nil {
				log.WithFields(log.Fields{"epoch": epoch + 1, "error": mse}).Debug("epoch finished")
			}
		}
	}

	if report.ReconstructionError, err = model.ReconstructionError(windows[0], sampler); err != nil {
		return nil, nil, err
	}
	return model, report, nil
}

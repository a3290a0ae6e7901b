// Package main is the entry point for the neuralnotes CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/james-see/neuralnotes/pkg/api"
	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/pianoroll"
	"github.com/james-see/neuralnotes/pkg/session"
	"github.com/james-see/neuralnotes/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const logFile = "neuralnotes.log"

var (
	configFile string
	verbose    bool
	outputFile string
	saveDir    string
	modelPath  string
	outDir     string
	serverPort int
)

func main() {
	// Ctrl-C stops loading or training between updates
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "neuralnotes",
	Short: "Train a restricted Boltzmann machine on MIDI files and sample new ones",
	Long: `neuralnotes learns short piano-roll patterns from a directory of MIDI files
with a restricted Boltzmann machine and writes new MIDI files sampled from it.

Examples:
  neuralnotes train ./songs --epochs 200
  neuralnotes generate --out ./samples --sample-count 10
  neuralnotes encode song.mid -o song.csv
  neuralnotes decode song.csv -o song
  neuralnotes tui
  neuralnotes serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var encodeCmd = &cobra.Command{
	Use:   "encode <input.mid>",
	Short: "Encode a MIDI file as a piano roll CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <roll.csv>",
	Short: "Decode a piano roll CSV into a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var loadCmd = &cobra.Command{
	Use:   "load <dir>",
	Short: "Load a directory of MIDI files and report what would be trained on",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var trainCmd = &cobra.Command{
	Use:   "train <dir>",
	Short: "Train a model on a directory of MIDI files",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrain,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Sample MIDI files from a trained model",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML settings file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	defaults := config.Default()
	for _, f := range config.Fields {
		flags.String(string(f), defaults.Get(f), config.Usage(f))
	}

	// encode command
	encodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .csv file path (default stdout)")

	// decode command
	decodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path without extension")

	// train command
	trainCmd.Flags().StringVar(&saveDir, "save", "", "Also save the model to this empty directory")

	// generate command
	generateCmd.Flags().StringVar(&modelPath, "model", "", "Model file or directory (default model cache)")
	generateCmd.Flags().StringVar(&outDir, "out", "", "Existing directory for samples (default sample-dir)")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	// Add commands
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

// settings layers the config file and any changed flags over the defaults
func settings(cmd *cobra.Command) (config.Config, error) {
	conf := config.Default()
	if configFile != "" {
		var err error
		if conf, err = config.Load(configFile); err != nil {
			return conf, err
		}
	}

	changes := map[config.Field]string{}
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		for _, f := range config.Fields {
			if fl.Name == string(f) {
				changes[f] = fl.Value.String()
			}
		}
	})
	err := conf.Apply(changes)
	return conf, err
}

func newSession(cmd *cobra.Command) (*session.Session, error) {
	conf, err := settings(cmd)
	if err != nil {
		return nil, err
	}
	return session.New(conf, session.WithProgress(os.Stderr))
}

func runEncode(cmd *cobra.Command, args []string) error {
	conf, err := settings(cmd)
	if err != nil {
		return err
	}
	input := args[0]

	roll, err := conf.Codec().EncodeFile(input)
	if errors.Is(err, pianoroll.ErrUnsupportedMeter) {
		log.WithError(err).Warn("encoding stopped early")
	} else if err != nil {
		return err
	}

	if outputFile == "" {
		return pianoroll.WriteCSV(os.Stdout, roll)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	if err := pianoroll.WriteCSV(f, roll); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Encoded %s -> %s (%d frames)\n", input, outputFile, roll.Shape()[0])
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	conf, err := settings(cmd)
	if err != nil {
		return err
	}
	input := args[0]

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	roll, err := pianoroll.ReadCSV(f)
	if err != nil {
		return err
	}

	stem := outputFile
	if stem == "" {
		stem = strings.TrimSuffix(input, filepath.Ext(input))
	}
	out, err := conf.Codec().DecodeFile(roll, stem)
	if err != nil {
		return err
	}

	fmt.Printf("Decoded %s -> %s\n", input, out)
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	n, err := s.LoadCorpus(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d sequences\n", s.TrainStatus(), n)
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if _, err := s.LoadCorpus(ctx, args[0]); err != nil {
		return err
	}
	report, err := s.Train(ctx, session.TrainRequest{SaveDir: saveDir})
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d epochs, %d updates over %d windows from %d sequences in %s\n",
		s.TrainStatus(), report.Epochs, report.Updates, report.Windows, report.Sequences, report.Duration.Round(time.Millisecond))
	fmt.Printf("Reconstruction error: %.4f\n", report.ReconstructionError)
	for _, path := range report.Saved {
		fmt.Printf("Saved model to %s\n", path)
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	report, err := s.Generate(cmd.Context(), session.GenerateRequest{ModelPath: modelPath, OutDir: outDir})
	if err != nil {
		return err
	}

	for _, path := range report.Written {
		fmt.Println(path)
	}
	fmt.Printf("%s: %d written, %d silent, saved to %s\n", s.GenerateStatus(), len(report.Written), report.Skipped, report.Dir)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	conf, err := settings(cmd)
	if err != nil {
		return err
	}

	// The alt screen owns the terminal, so logs go to a file
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	log.SetOutput(f)

	s, err := session.New(conf)
	if err != nil {
		return err
	}
	return tui.Run(s)
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := settings(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", serverPort)
	return api.StartServer(serverPort, conf)
}

package reduce

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Exit codes of a reduction run.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// PipelineResult is the outcome of a run that reached the subtract-and-center
// stage.
type PipelineResult struct {
	Classified      ClassifiedSet    `json:"classified"`
	Succeeded       []string         `json:"succeeded"`
	Ledger          FailureLedger    `json:"ledger"`
	ExtractFailures []ExtractFailure `json:"extract_failures,omitempty"`
}

// ExitCode maps the result onto ExitOK or ExitPartial.
func (r *PipelineResult) ExitCode() int {
	if r.Ledger.Empty() && len(r.ExtractFailures) == 0 {
		return ExitOK
	}
	return ExitPartial
}

// Pipeline wires the stages together. Collaborators are injected so that the
// external executables and the FITS reader can be replaced in tests.
type Pipeline struct {
	Config     *Config
	Headers    HeaderReader
	Normalizer Normalizer
	Darks      DarkBuilder
	Frames     FrameProcessor
	Log        logrus.FieldLogger
	Stdout     io.Writer
}

// Classification is the metadata store and its cleaned classification.
type Classification struct {
	Build   *StoreBuild
	Cleaned ClassifiedSet
}

// Classify loads or builds the metadata store and returns the cleaned
// classification. No external tools are run.
func (p *Pipeline) Classify(ctx context.Context, frameDir string) (*Classification, error) {
	log := p.logger()
	ext := &Extractor{Reader: p.Headers, Workers: p.Config.MaxProcesses, Log: log}
	build, err := LoadOrBuild(ctx, p.Config, NewMetadataCache(p.Config), ext, frameDir, log)
	if err != nil {
		return nil, err
	}

	classifier := NewClassifier(p.Config, log)
	log.Info("Sorting header metadata...")
	sorted := classifier.Sort(build.Store)
	log.Info("Cleaning dictionary...")
	cleaned := classifier.Clean(sorted, build.Store)
	for _, t := range cleaned.Types() {
		log.WithField("type", t).Infof("%d frames", len(cleaned[t]))
	}
	return &Classification{Build: build, Cleaned: cleaned}, nil
}

// Run executes the full reduction over the raw frames in frameDir. Fatal
// problems are returned as errors; per-frame problems are reported in the
// result's ledger. The failure summary is always printed once the
// subtract-and-center stage has run.
func (p *Pipeline) Run(ctx context.Context, frameDir string) (*PipelineResult, error) {
	log := p.logger()

	shifts, err := LoadShiftTable(p.Config.FileShifts)
	if err != nil {
		return nil, err
	}

	cls, err := p.Classify(ctx, frameDir)
	if err != nil {
		return nil, err
	}

	resolver := &NormResolver{Config: p.Config, Normalizer: p.Normalizer, Log: log}
	synth := &CalibrationSynthesizer{Config: p.Config, Builder: p.Darks, Log: log}

	var (
		scienceNorms NormTable
		darkNorms    NormTable
		artifacts    CalibrationArtifacts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Getting science norms...")
		var err error
		scienceNorms, err = resolver.ScienceNorms(gctx, cls.Cleaned.Science(), frameDir)
		return err
	})
	g.Go(func() error {
		var err error
		artifacts, err = synth.Synthesize(gctx, cls.Cleaned.Dark(), frameDir)
		if err != nil {
			return err
		}
		darkNorms, err = resolver.DarkNorms(artifacts)
		if err != nil {
			return err
		}
		if len(darkNorms) == 0 {
			return &CalibrationError{Msg: "dark norms table is empty"}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("Running SubtractAndCenter...")
	stage := &SubtractCenterStage{Config: p.Config, Processor: p.Frames, Log: log}
	sr, err := stage.Run(ctx, StageInput{
		FrameDir:     frameDir,
		Science:      cls.Cleaned.Science(),
		ScienceNorms: scienceNorms,
		DarkNorms:    darkNorms,
		Shifts:       shifts,
		Calibration:  artifacts,
	})
	if err != nil {
		return nil, err
	}
	if err := sr.Ledger.WriteSummary(p.stdout()); err != nil {
		return nil, err
	}

	log.Info("Findr reduction complete")
	return &PipelineResult{
		Classified:      cls.Cleaned,
		Succeeded:       sr.Succeeded,
		Ledger:          sr.Ledger,
		ExtractFailures: cls.Build.Failures,
	}, nil
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

func (p *Pipeline) stdout() io.Writer {
	if p.Stdout == nil {
		return os.Stdout
	}
	return p.Stdout
}

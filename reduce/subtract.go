package reduce

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FrameState tracks one science frame through the subtract-and-center stage.
type FrameState int

const (
	StatePending FrameState = iota
	StateNormMissing
	StateShiftMissing
	StateDispatched
	StateDone
	StateFailed
)

func (s FrameState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateNormMissing:
		return "NORM_MISSING"
	case StateShiftMissing:
		return "SHIFT_MISSING"
	case StateDispatched:
		return "DISPATCHED"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// FrameJob is everything the external subtraction and centering tools need
// for one science frame.
type FrameJob struct {
	DarksubPath  string
	FitscentPath string
	MasterDark   string
	Concurrency  int
	FrameDir     string
	Filename     string
	Norm         float64
	DarkNorm     float64 // reference norm of the master dark
	Shift        Shift
	SmoothWindow int
	ImageSize    int
}

// Path returns the frame's location on disk.
func (j FrameJob) Path() string { return filepath.Join(j.FrameDir, j.Filename) }

// FrameProcessor dark-subtracts and recenters one frame.
type FrameProcessor interface {
	SubtractAndCenter(ctx context.Context, job FrameJob) error
}

// FrameOutcome is the terminal state of one frame.
type FrameOutcome struct {
	Filename string
	State    FrameState
	Err      string
}

// StageInput gathers the outputs of the two parallel branches.
type StageInput struct {
	FrameDir     string
	Science      []string
	ScienceNorms NormTable
	DarkNorms    NormTable
	Shifts       ShiftTable
	Calibration  CalibrationArtifacts
}

// StageResult is returned once every frame has reached a terminal state.
type StageResult struct {
	Outcomes  []FrameOutcome
	Succeeded []string
	Ledger    FailureLedger
}

// SubtractCenterStage dispatches qualifying science frames to the external
// tools, at most Config.MaxProcesses at a time.
type SubtractCenterStage struct {
	Config    *Config
	Processor FrameProcessor
	Log       logrus.FieldLogger
}

// Run resolves each frame's norm, then its shift, and dispatches the frames
// that have both. A missing norm is reported even when the shift is missing
// too. Per-frame failures land in the ledger; only cancellation is returned
// as an error. The ledger is assembled after all jobs have finished.
func (s *SubtractCenterStage) Run(ctx context.Context, in StageInput) (*StageResult, error) {
	darkNorm := in.DarkNorms.Summary().Median
	outcomes := make([]FrameOutcome, len(in.Science))

	workers := s.Config.MaxProcesses
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range in.Science {
		i, name := i, name
		outcomes[i] = FrameOutcome{Filename: name, State: StatePending}

		norm, ok := in.ScienceNorms.Lookup(name)
		if !ok {
			outcomes[i].State = StateNormMissing
			s.Log.WithField("file", name).Warn("No norm for science frame, skipping")
			continue
		}
		shift, ok := in.Shifts.Lookup(name)
		if !ok {
			outcomes[i].State = StateShiftMissing
			s.Log.WithField("file", name).Warn("No shift for science frame, skipping")
			continue
		}

		job := FrameJob{
			DarksubPath:  s.Config.DarksubPath,
			FitscentPath: s.Config.FitscentPath,
			MasterDark:   in.Calibration.MasterDark,
			Concurrency:  s.Config.MaxProcesses,
			FrameDir:     in.FrameDir,
			Filename:     name,
			Norm:         norm,
			DarkNorm:     darkNorm,
			Shift:        shift,
			SmoothWindow: s.Config.SmoothWindow,
			ImageSize:    s.Config.FullImageSize,
		}
		outcomes[i].State = StateDispatched
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.Processor.SubtractAndCenter(gctx, job); err != nil {
				s.Log.WithField("file", name).Warnf("Subtract and center failed: %v", err)
				outcomes[i].State = StateFailed
				outcomes[i].Err = err.Error()
				return nil
			}
			outcomes[i].State = StateDone
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &StageResult{Outcomes: outcomes, Succeeded: []string{}, Ledger: NewFailureLedger()}
	for _, o := range outcomes {
		if o.State == StateDone {
			res.Succeeded = append(res.Succeeded, o.Filename)
			continue
		}
		res.Ledger.Record(o.Filename, o.State)
	}
	return res, nil
}

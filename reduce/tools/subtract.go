package tools

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/findr-pipeline/findr/reduce"
)

// Output name prefixes. They match reduce.DefaultExcludedPrefixes so that
// derived products are never rediscovered as raw frames.
const (
	DarksubPrefix  = "dsub_"
	CenteredPrefix = "cent_"
)

// SubtractCenter runs darksub followed by fitscent on a single frame.
type SubtractCenter struct {
	Runner
}

// Outputs returns the dark-subtracted and centered product paths for job.
func Outputs(job reduce.FrameJob) (dsub, cent string) {
	dsub = filepath.Join(job.FrameDir, DarksubPrefix+job.Filename)
	cent = filepath.Join(job.FrameDir, CenteredPrefix+DarksubPrefix+job.Filename)
	return dsub, cent
}

// SubtractAndCenter implements reduce.FrameProcessor.
func (s *SubtractCenter) SubtractAndCenter(ctx context.Context, job reduce.FrameJob) error {
	dsub, cent := Outputs(job)
	size := strconv.Itoa(job.ImageSize)

	err := s.run(ctx, job.DarksubPath,
		"-i", job.Path(),
		"-d", job.MasterDark,
		"-n", formatFloat(job.Norm),
		"-D", formatFloat(job.DarkNorm),
		"-w", strconv.Itoa(job.SmoothWindow),
		"-s", size,
		"-o", dsub,
	)
	if err != nil {
		return err
	}
	return s.run(ctx, job.FitscentPath,
		"-i", dsub,
		"-x", formatFloat(job.Shift.DX),
		"-y", formatFloat(job.Shift.DY),
		"-s", size,
		"-o", cent,
	)
}

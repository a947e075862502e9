package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/findr-pipeline/findr/reduce"
)

// Darkmaster wraps the darkmaster executable. It serves both as the master
// dark builder and as the science-norm calculator.
type Darkmaster struct {
	Runner
}

// BuildMasterDark writes the dark list and runs darkmaster over it.
func (d *Darkmaster) BuildMasterDark(ctx context.Context, req reduce.MasterDarkRequest) (reduce.CalibrationArtifacts, error) {
	if err := writeList(req.Outputs.DarkList, req.Files); err != nil {
		return reduce.CalibrationArtifacts{}, fmt.Errorf("writing dark list: %w", err)
	}
	args := []string{
		"-l", req.Outputs.DarkList,
		"-o", req.Outputs.MasterDark,
		"-n", req.Outputs.DarkNorms,
	}
	if req.MedianDark {
		args = append(args, "-m")
	}
	if req.MedianNorm {
		args = append(args, "-M")
	}
	if err := d.run(ctx, req.DarkmasterPath, args...); err != nil {
		return reduce.CalibrationArtifacts{}, err
	}
	return req.Outputs, nil
}

// ComputeNorms runs darkmaster in norm-only mode over the science frames and
// returns the path of the norms file.
func (d *Darkmaster) ComputeNorms(ctx context.Context, req reduce.NormRequest) (string, error) {
	list := req.OutputName + ".list"
	rel := make([]string, len(req.Files))
	for i, f := range req.Files {
		rel[i] = filepath.Base(f)
	}
	if err := writeList(list, rel); err != nil {
		return "", fmt.Errorf("writing science list: %w", err)
	}
	err := d.run(ctx, req.DarkmasterPath,
		"-l", list,
		"-N", req.OutputName,
		"-d", req.FrameDir,
		"-b", strconv.Itoa(req.BufferSize),
		"-s", strconv.Itoa(req.ImageSize),
	)
	if err != nil {
		return "", err
	}
	return req.OutputName, nil
}

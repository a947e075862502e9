package reduce

import (
	"context"

	"github.com/sirupsen/logrus"
)

// CalibrationArtifacts are the well-known files the master dark builder
// leaves behind. Later stages consume them by path.
type CalibrationArtifacts struct {
	DarkList   string `json:"dark_list"`
	MasterDark string `json:"master_dark"`
	DarkNorms  string `json:"dark_norms"`
}

// MasterDarkRequest parameterizes one master dark build.
type MasterDarkRequest struct {
	DarkmasterPath string
	FrameDir       string
	Files          []string
	Outputs        CalibrationArtifacts
	MedianDark     bool // per-pixel median across the dark frames
	MedianNorm     bool // median-based normalization
}

// DarkBuilder runs the external master dark generator.
type DarkBuilder interface {
	BuildMasterDark(ctx context.Context, req MasterDarkRequest) (CalibrationArtifacts, error)
}

// CalibrationSynthesizer combines the classified dark frames into a master
// dark. Any failure is fatal to the run.
type CalibrationSynthesizer struct {
	Config  *Config
	Builder DarkBuilder
	Log     logrus.FieldLogger
}

// Synthesize builds the master dark from darks (filenames relative to frameDir).
func (s *CalibrationSynthesizer) Synthesize(ctx context.Context, darks []string, frameDir string) (CalibrationArtifacts, error) {
	if len(darks) == 0 {
		return CalibrationArtifacts{}, &EmptyInputError{What: "dark frames for calibration", Dir: frameDir}
	}
	req := MasterDarkRequest{
		DarkmasterPath: s.Config.DarkmasterPath,
		FrameDir:       frameDir,
		Files:          framePaths(frameDir, darks),
		Outputs: CalibrationArtifacts{
			DarkList:   s.Config.DarkListFilename,
			MasterDark: s.Config.MasterDarkFilename,
			DarkNorms:  s.Config.DarkNormsFilename,
		},
		MedianDark: true,
		MedianNorm: true,
	}
	s.Log.Infof("Generating master dark from %d dark frames", len(darks))
	artifacts, err := s.Builder.BuildMasterDark(ctx, req)
	if err != nil {
		return CalibrationArtifacts{}, &CalibrationError{Msg: "building master dark", Cause: err}
	}
	for _, p := range []string{artifacts.MasterDark, artifacts.DarkNorms} {
		if !fileExists(p) {
			return CalibrationArtifacts{}, &CalibrationError{Msg: "expected artifact " + p + " was not written"}
		}
	}
	return artifacts, nil
}

package reduce_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/findr-pipeline/findr/reduce"
)

// testConfig returns a validated configuration whose artifacts all live in dir.
func testConfig(t *testing.T, dir string) *reduce.Config {
	t.Helper()
	cfg := &reduce.Config{
		MaxProcesses:         2,
		FileShifts:           filepath.Join(dir, "shifts.txt"),
		DarkmasterPath:       "darkmaster",
		DarksubPath:          "darksub",
		FitscentPath:         "fitscent",
		OutputFilename:       filepath.Join(dir, "meta"),
		SmoothWindow:         20,
		DarkListFilename:     "darks.list",
		MasterDarkFilename:   "masterdark.fits",
		DarkNormsFilename:    "dark.norms",
		FullImageSize:        1024,
		NormBufferSize:       reduce.DefaultNormBufferSize,
		ScienceNormsFilename: reduce.DefaultScienceNormsFilename,
		TypeKey:              reduce.DefaultTypeKey,
		LoopStateKey:         reduce.DefaultLoopStateKey,
		ExcludedPrefixes:     reduce.DefaultExcludedPrefixes,
		FrameExtension:       reduce.DefaultFrameExtension,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

// quietLogger discards all log output.
func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func dark() map[string]any {
	return map[string]any{"VIMTYPE": "DARK", "EXPTIME": 0.283, "AOLOOPST": "OPEN"}
}

func science(loop string) map[string]any {
	return map[string]any{"VIMTYPE": "SCIENCE", "EXPTIME": 0.283, "AOLOOPST": loop, "OBJECT": "HD 142527"}
}

func storeOf(t *testing.T, headers map[string]map[string]any) *reduce.MetadataStore {
	t.Helper()
	var records []reduce.FrameRecord
	for name, h := range headers {
		records = append(records, reduce.NewFrameRecord(name, h))
	}
	s, err := reduce.NewMetadataStore(records)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}
	return s
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/findr-pipeline/findr/reduce"
)

// RunReport is the JSON record of one reduction run.
type RunReport struct {
	RunID           string                  `json:"run_id"`
	FramesDir       string                  `json:"frames_dir"`
	ConfigPath      string                  `json:"config_path"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	Buckets         map[string]int          `json:"buckets"`
	Succeeded       []string                `json:"succeeded"`
	Ledger          reduce.FailureLedger    `json:"ledger"`
	ExtractFailures []reduce.ExtractFailure `json:"extract_failures,omitempty"`
	ExitCode        int                     `json:"exit_code"`
}

// NewRunReport starts a report with a fresh run id.
func NewRunReport(framesDir, configPath string) *RunReport {
	return &RunReport{
		RunID:      uuid.NewString(),
		FramesDir:  framesDir,
		ConfigPath: configPath,
		StartedAt:  time.Now(),
		Buckets:    map[string]int{},
	}
}

// Complete copies the pipeline outcome into the report.
func (r *RunReport) Complete(res *reduce.PipelineResult, finished time.Time) {
	r.FinishedAt = finished
	for t, names := range res.Classified {
		r.Buckets[t] = len(names)
	}
	r.Succeeded = res.Succeeded
	r.Ledger = res.Ledger
	r.ExtractFailures = res.ExtractFailures
	r.ExitCode = res.ExitCode()
}

// Write stores the report as indented JSON.
func (r *RunReport) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}

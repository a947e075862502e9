// Package testutil provides fakes for the pipeline's external collaborators
// and fixture writers shared by the test packages.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/findr-pipeline/findr/reduce"
)

// FakeHeaders serves headers from memory, keyed by frame base name.
type FakeHeaders struct {
	Headers map[string]map[string]any
	Errs    map[string]error

	mu    sync.Mutex
	reads []string
}

// ReadHeader implements reduce.HeaderReader.
func (f *FakeHeaders) ReadHeader(path string) (map[string]any, error) {
	name := filepath.Base(path)
	f.mu.Lock()
	f.reads = append(f.reads, name)
	f.mu.Unlock()
	if err, ok := f.Errs[name]; ok {
		return nil, err
	}
	h, ok := f.Headers[name]
	if !ok {
		return nil, fmt.Errorf("no header for %s", name)
	}
	out := make(map[string]any, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

// Reads returns the base names read so far, sorted.
func (f *FakeHeaders) Reads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.reads...)
	sort.Strings(out)
	return out
}

// FakeNormalizer writes Norms to the requested output name inside Dir.
type FakeNormalizer struct {
	Dir   string
	Norms map[string]float64
	Err   error

	Calls []reduce.NormRequest
}

// ComputeNorms implements reduce.Normalizer.
func (f *FakeNormalizer) ComputeNorms(_ context.Context, req reduce.NormRequest) (string, error) {
	f.Calls = append(f.Calls, req)
	if f.Err != nil {
		return "", f.Err
	}
	path := filepath.Join(f.Dir, req.OutputName)
	if err := os.WriteFile(path, []byte(FormatNorms(f.Norms)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// FakeDarkBuilder writes a placeholder master dark and the configured dark
// norms into Dir.
type FakeDarkBuilder struct {
	Dir       string
	DarkNorms map[string]float64
	Err       error

	Calls []reduce.MasterDarkRequest
}

// BuildMasterDark implements reduce.DarkBuilder.
func (f *FakeDarkBuilder) BuildMasterDark(_ context.Context, req reduce.MasterDarkRequest) (reduce.CalibrationArtifacts, error) {
	f.Calls = append(f.Calls, req)
	if f.Err != nil {
		return reduce.CalibrationArtifacts{}, f.Err
	}
	out := reduce.CalibrationArtifacts{
		DarkList:   filepath.Join(f.Dir, req.Outputs.DarkList),
		MasterDark: filepath.Join(f.Dir, req.Outputs.MasterDark),
		DarkNorms:  filepath.Join(f.Dir, req.Outputs.DarkNorms),
	}
	if err := os.WriteFile(out.DarkList, []byte(strings.Join(req.Files, "\n")+"\n"), 0o644); err != nil {
		return reduce.CalibrationArtifacts{}, err
	}
	if err := os.WriteFile(out.MasterDark, []byte("master"), 0o644); err != nil {
		return reduce.CalibrationArtifacts{}, err
	}
	if err := os.WriteFile(out.DarkNorms, []byte(FormatNorms(f.DarkNorms)), 0o644); err != nil {
		return reduce.CalibrationArtifacts{}, err
	}
	return out, nil
}

// FakeProcessor records dispatched jobs and fails the frames listed in Fail.
type FakeProcessor struct {
	Fail map[string]bool

	mu   sync.Mutex
	jobs []reduce.FrameJob
}

// SubtractAndCenter implements reduce.FrameProcessor.
func (f *FakeProcessor) SubtractAndCenter(_ context.Context, job reduce.FrameJob) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.Fail[job.Filename] {
		return &reduce.ToolError{Tool: "darksub", ExitCode: 3, Stderr: "simulated failure"}
	}
	return nil
}

// Dispatched returns the filenames of every job received, sorted.
func (f *FakeProcessor) Dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.jobs))
	for i, j := range f.jobs {
		names[i] = j.Filename
	}
	sort.Strings(names)
	return names
}

// Jobs returns a copy of the received jobs.
func (f *FakeProcessor) Jobs() []reduce.FrameJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reduce.FrameJob(nil), f.jobs...)
}

// FormatNorms renders norms in the "filename value" file format, in
// reverse-sorted order so that readers must sort them.
func FormatNorms(norms map[string]float64) string {
	names := make([]string, 0, len(norms))
	for n := range norms {
		names = append(names, n)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s %g\n", n, norms[n])
	}
	return b.String()
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// TouchFrames creates empty frame files so discovery can find them.
func TouchFrames(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		WriteFile(t, dir, n, "")
	}
}

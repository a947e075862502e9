package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/findr-pipeline/findr/internal/testutil"
	"github.com/findr-pipeline/findr/reduce"
)

// darkmasterScript builds a master dark (-o) or norms only (-N), giving
// every listed frame a norm of 1.5.
const darkmasterScript = `#!/bin/sh
list=""; out=""; norms=""
while [ $# -gt 0 ]; do
  case "$1" in
    -l) list="$2"; shift 2;;
    -o) out="$2"; shift 2;;
    -n|-N) norms="$2"; shift 2;;
    *) shift;;
  esac
done
[ -n "$out" ] && : > "$out"
: > "$norms"
while read -r f; do echo "$(basename "$f") 1.5" >> "$norms"; done < "$list"
exit 0
`

// touchOutputScript creates the file named by -o.
const touchOutputScript = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    -o) : > "$2"; shift 2;;
    *) shift;;
  esac
done
`

type workspace struct {
	dir    string
	frames string
	config string
}

// newWorkspace lays out FITS frames (two darks, two closed-loop science,
// one open-loop science), stand-in tools, a shift file covering only
// s1.fits and a configuration pointing at all of them.
func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames")
	require.NoError(t, os.Mkdir(frames, 0o755))

	card := func(k string, v any) testutil.Card { return testutil.Card{Key: k, Value: v} }
	for _, n := range []string{"d1.fits", "d2.fits"} {
		testutil.WriteFITS(t, frames, n, card("VIMTYPE", "DARK"), card("AOLOOPST", "OPEN"), card("EXPTIME", 0.283))
	}
	for _, n := range []string{"s1.fits", "s2.fits"} {
		testutil.WriteFITS(t, frames, n, card("VIMTYPE", "SCIENCE"), card("AOLOOPST", "CLOSED"), card("EXPTIME", 0.283))
	}
	testutil.WriteFITS(t, frames, "s3.fits", card("VIMTYPE", "SCIENCE"), card("AOLOOPST", "OPEN"))

	for name, script := range map[string]string{
		"darkmaster": darkmasterScript,
		"darksub":    touchOutputScript,
		"fitscent":   touchOutputScript,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
	}
	testutil.WriteFile(t, dir, "shifts.txt", "s1.fits 1 -1\n")

	cfg := fmt.Sprintf(`findr:
  max_processes: 2
  fileshifts: %[1]s/shifts.txt
  darkmaster_path: %[1]s/darkmaster
  darksub_path: %[1]s/darksub
  fitscent_path: %[1]s/fitscent
  outputfname: %[1]s/meta
  smooth_window: 20
  darklist_filename: %[1]s/darks.list
  masterdark_filename: %[1]s/masterdark.fits
  darknorms_filename: %[1]s/dark.norms
  science_norms_filename: %[1]s/science.norms
  fullimage_size: 1024
`, dir)
	return workspace{dir: dir, frames: frames, config: testutil.WriteFile(t, dir, "findr.yaml", cfg)}
}

func TestRunReduce_PartialFailure(t *testing.T) {
	// GIVEN a workspace where s2.fits has no shift
	ws := newWorkspace(t)
	report := filepath.Join(ws.dir, "report.json")
	var stdout bytes.Buffer

	// WHEN reducing
	code, err := runReduce(context.Background(), ws.config, ws.frames, report, &stdout)
	require.NoError(t, err)

	// THEN the run finishes with partial failures and prints the summary
	assert.Equal(t, reduce.ExitPartial, code)
	assert.Equal(t, "SubtractAndCenter: 1 failures\n-- Missing Norms: 0\n-- Missing Shifts: 1\n-- Tool Failures: 0\n", stdout.String())

	// AND s1.fits was dark-subtracted and centered next to its raw frame
	assert.FileExists(t, filepath.Join(ws.frames, "dsub_s1.fits"))
	assert.FileExists(t, filepath.Join(ws.frames, "cent_dsub_s1.fits"))
	assert.NoFileExists(t, filepath.Join(ws.frames, "cent_dsub_s2.fits"))

	// AND the metadata cache and run report are written
	assert.FileExists(t, filepath.Join(ws.dir, "meta.tsv"))
	assert.FileExists(t, filepath.Join(ws.dir, "meta.json"))
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var rep RunReport
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, map[string]int{"DARK": 2, "SCIENCE": 2}, rep.Buckets)
	assert.Equal(t, []string{"s1.fits"}, rep.Succeeded)
	assert.Equal(t, []string{"s2.fits"}, rep.Ledger.MissingShifts)
	assert.Equal(t, reduce.ExitPartial, rep.ExitCode)
	_, err = uuid.Parse(rep.RunID)
	assert.NoError(t, err)
}

func TestRunReduce_SecondRunUsesCache(t *testing.T) {
	ws := newWorkspace(t)
	var first, second bytes.Buffer
	_, err := runReduce(context.Background(), ws.config, ws.frames, "", &first)
	require.NoError(t, err)

	// Corrupt a raw frame: a cached run must not read it again.
	require.NoError(t, os.WriteFile(filepath.Join(ws.frames, "d1.fits"), []byte("junk"), 0o644))

	code, err := runReduce(context.Background(), ws.config, ws.frames, "", &second)
	require.NoError(t, err)
	assert.Equal(t, reduce.ExitPartial, code)
	assert.Equal(t, first.String(), second.String())
}

func TestRunReduce_ConfigErrors(t *testing.T) {
	dir := t.TempDir()

	code, err := runReduce(context.Background(), filepath.Join(dir, "missing.yaml"), dir, "", &bytes.Buffer{})
	assert.Equal(t, reduce.ExitFatal, code)
	assert.ErrorIs(t, err, reduce.ErrFatalConfig)

	bad := testutil.WriteFile(t, dir, "bad.yaml", "findr:\n  max_processes: 0\n")
	code, err = runReduce(context.Background(), bad, dir, "", &bytes.Buffer{})
	assert.Equal(t, reduce.ExitFatal, code)
	var cfgErr *reduce.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "max_processes", cfgErr.Key)
}

func TestRunReduce_NoFrames(t *testing.T) {
	ws := newWorkspace(t)
	empty := filepath.Join(ws.dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))

	code, err := runReduce(context.Background(), ws.config, empty, "", &bytes.Buffer{})
	assert.Equal(t, reduce.ExitFatal, code)
	assert.ErrorIs(t, err, reduce.ErrEmptyInput)
}

func TestRunClassify_PrintsCleanedSet(t *testing.T) {
	// GIVEN the workspace frames
	ws := newWorkspace(t)
	t.Cleanup(func() { exitCode = reduce.ExitOK })
	var stdout bytes.Buffer

	// WHEN classifying
	require.NoError(t, runClassify(context.Background(), ws.config, ws.frames, &stdout))

	// THEN the YAML lists the open-loop science frame nowhere
	var got map[string][]string
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, map[string][]string{
		"DARK":    {"d1.fits", "d2.fits"},
		"SCIENCE": {"s1.fits", "s2.fits"},
	}, got)
	assert.Equal(t, reduce.ExitOK, exitCode)

	// AND no external tool was run
	assert.NoFileExists(t, filepath.Join(ws.dir, "masterdark.fits"))
}

func TestRunClassify_UnreadableFrameIsPartial(t *testing.T) {
	ws := newWorkspace(t)
	t.Cleanup(func() { exitCode = reduce.ExitOK })
	testutil.WriteFile(t, ws.frames, "broken.fits", "not a fits file")

	require.NoError(t, runClassify(context.Background(), ws.config, ws.frames, &bytes.Buffer{}))
	assert.Equal(t, reduce.ExitPartial, exitCode)
	assert.NoFileExists(t, filepath.Join(ws.dir, "meta.json"))
}

func TestNormsCommand_PrintsNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "x.norms", "V47_10.fits 2\nV47_9.fits 1\n")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"norms", "--file", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "V47_9.fits 1\nV47_10.fits 2\n", out.String())
}

func TestRunReport_Complete(t *testing.T) {
	rep := NewRunReport("/frames", "findr.yaml")
	res := &reduce.PipelineResult{
		Classified: reduce.ClassifiedSet{"DARK": {"d1.fits"}, "SCIENCE": {"s1.fits", "s2.fits"}},
		Succeeded:  []string{"s1.fits", "s2.fits"},
		Ledger:     reduce.NewFailureLedger(),
	}

	rep.Complete(res, rep.StartedAt)

	assert.Equal(t, map[string]int{"DARK": 1, "SCIENCE": 2}, rep.Buckets)
	assert.Equal(t, reduce.ExitOK, rep.ExitCode)
	assert.NotEmpty(t, rep.RunID)
	assert.NotEqual(t, rep.RunID, NewRunReport("/frames", "findr.yaml").RunID)
}

func TestReduceCommand_MilestonesOnStdout(t *testing.T) {
	// GIVEN the reduce command with its output captured
	ws := newWorkspace(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"reduce", "--config", ws.config, "--frames", ws.frames})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		logrus.SetOutput(os.Stderr)
		exitCode = reduce.ExitOK
	})

	// WHEN it runs
	require.NoError(t, rootCmd.Execute())

	// THEN progress lines and the failure summary both reach stdout
	assert.Contains(t, out.String(), "Sorting header metadata")
	assert.Contains(t, out.String(), "Findr reduction complete")
	assert.Contains(t, out.String(), "SubtractAndCenter: 1 failures")
	assert.Equal(t, reduce.ExitPartial, exitCode)
}

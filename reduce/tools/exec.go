// Package tools drives the external FINDR executables.
//
// The wrappers speak this command-line contract:
//
//	darkmaster -l LIST -o MASTER -n NORMS [-m] [-M]      build a master dark
//	darkmaster -l LIST -N NORMS -d DIR -b BUF -s SIZE     compute frame norms
//	darksub    -i IN -d MASTER -n NORM -D DARKNORM -w WIN -s SIZE -o OUT
//	fitscent   -i IN -x DX -y DY -s SIZE -o OUT
//
// Each call blocks until the process exits. A non-zero exit status or a
// launch failure is reported as a *reduce.ToolError.
package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/findr-pipeline/findr/reduce"
)

// Runner executes external tools and captures their output.
type Runner struct {
	Log logrus.FieldLogger
}

func (r Runner) run(ctx context.Context, tool string, args ...string) error {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("tool", tool).Debugf("exec %s %s", tool, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &reduce.ToolError{Tool: filepath.Base(tool), Cause: ctxErr, Stderr: stderr.String()}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &reduce.ToolError{Tool: filepath.Base(tool), ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return &reduce.ToolError{Tool: filepath.Base(tool), Cause: err}
}

func writeList(path string, files []string) error {
	return os.WriteFile(path, []byte(strings.Join(files, "\n")+"\n"), 0o644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

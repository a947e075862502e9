package reduce

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFatalConfig    = errors.New("fatal configuration error")
	ErrEmptyInput     = errors.New("empty input")
	ErrCalibration    = errors.New("calibration synthesis failed")
	ErrNormResolution = errors.New("norm resolution failed")
)

// ConfigError reports a missing or unusable configuration value.
// It aborts the run before any frame is touched.
type ConfigError struct {
	Key   string
	Msg   string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrFatalConfig.Error(), msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFatalConfig.Error(), e.Key, msg)
}

func (e *ConfigError) Is(target error) bool { return target == ErrFatalConfig }

func (e *ConfigError) Unwrap() error { return e.Cause }

func configErrorf(key, format string, args ...any) error {
	return &ConfigError{Key: key, Msg: fmt.Sprintf(format, args...)}
}

// EmptyInputError is returned when a stage has nothing to work on and
// cannot produce a meaningful result (no raw frames, no dark frames).
type EmptyInputError struct {
	What string
	Dir  string
}

func (e *EmptyInputError) Error() string {
	if e == nil {
		return ""
	}
	if e.Dir != "" {
		return fmt.Sprintf("%s: no %s found in %s", ErrEmptyInput.Error(), e.What, e.Dir)
	}
	return fmt.Sprintf("%s: no %s", ErrEmptyInput.Error(), e.What)
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// CalibrationError wraps a failure of the master dark builder. A master dark
// is a hard prerequisite for subtraction, so this error is always fatal.
type CalibrationError struct {
	Msg   string
	Cause error
}

func (e *CalibrationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", ErrCalibration.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", ErrCalibration.Error(), e.Msg, e.Cause)
}

func (e *CalibrationError) Is(target error) bool { return target == ErrCalibration }

func (e *CalibrationError) Unwrap() error { return e.Cause }

// ToolError describes an external executable that failed to launch or exited
// non-zero.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Cause    error
}

// maxStderrTail bounds how much tool stderr is carried in an error message.
const maxStderrTail = 512

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "external tool %s failed", e.Tool)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if tail := stderrTail(e.Stderr); tail != "" {
		fmt.Fprintf(&b, ": %s", tail)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Cause }

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		s = "..." + s[len(s)-maxStderrTail:]
	}
	return s
}

package reduce

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Shift is the spatial offset used to recenter one frame, in pixels.
type Shift struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// ShiftTable maps frame filenames to their shifts.
type ShiftTable map[string]Shift

// Lookup returns the shift recorded for filename.
func (t ShiftTable) Lookup(filename string) (Shift, bool) {
	s, ok := t[filename]
	return s, ok
}

// ParseShifts reads "filename dx dy" lines, skipping blanks and '#' comments.
// A repeated filename keeps its first shift.
func ParseShifts(r io.Reader) (ShiftTable, error) {
	table := make(ShiftTable)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected filename dx dy, got %q", lineNo, line)
		}
		dx, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid dx %q: %w", lineNo, fields[1], err)
		}
		dy, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid dy %q: %w", lineNo, fields[2], err)
		}
		name := filepath.Base(fields[0])
		if _, seen := table[name]; !seen {
			table[name] = Shift{DX: dx, DY: dy}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadShiftTable reads the configured shift-data source. An unreadable or
// malformed source is a configuration error.
func LoadShiftTable(path string) (ShiftTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Key: "fileshifts", Msg: "opening shift data", Cause: err}
	}
	defer func() { _ = f.Close() }()

	table, err := ParseShifts(f)
	if err != nil {
		return nil, &ConfigError{Key: "fileshifts", Msg: "parsing " + path, Cause: err}
	}
	return table, nil
}

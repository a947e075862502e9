package reduce

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// NormEntry is one frame's normalization scalar.
type NormEntry struct {
	Filename string  `json:"filename" yaml:"filename"`
	Value    float64 `json:"value" yaml:"value"`
}

// NormTable is a list of norms sorted by filename in natural order.
// Build one with SortNorms; Lookup relies on the ordering.
type NormTable []NormEntry

// SortNorms returns a sorted copy of entries. The sort is stable, so among
// duplicate filenames the first listed entry wins in Lookup.
func SortNorms(entries []NormEntry) NormTable {
	out := make(NormTable, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return NaturalLess(out[i].Filename, out[j].Filename) })
	return out
}

// Lookup finds the norm of filename by exact match.
func (t NormTable) Lookup(filename string) (float64, bool) {
	i := sort.Search(len(t), func(i int) bool { return !NaturalLess(t[i].Filename, filename) })
	if i < len(t) && t[i].Filename == filename {
		return t[i].Value, true
	}
	return 0, false
}

// Values returns the norm values in table order.
func (t NormTable) Values() []float64 {
	vals := make([]float64, len(t))
	for i, e := range t {
		vals[i] = e.Value
	}
	return vals
}

// NormSummary holds descriptive statistics of a NormTable.
type NormSummary struct {
	Count  int
	Median float64
	Mean   float64
}

// Summary computes the count, median and mean of the table's values.
func (t NormTable) Summary() NormSummary {
	if len(t) == 0 {
		return NormSummary{}
	}
	vals := t.Values()
	sort.Float64s(vals)
	return NormSummary{
		Count:  len(vals),
		Median: stat.Quantile(0.5, stat.Empirical, vals, nil),
		Mean:   stat.Mean(vals, nil),
	}
}

// ParseNorms reads "filename value" lines. Blank lines and lines starting
// with '#' are skipped. Filenames are reduced to their base name so that
// tables keyed by path still match store filenames.
func ParseNorms(r io.Reader) ([]NormEntry, error) {
	var entries []NormEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected filename and value, got %q", lineNo, line)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid norm %q: %w", lineNo, fields[1], err)
		}
		entries = append(entries, NormEntry{Filename: filepath.Base(fields[0]), Value: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadNormTable reads a norms file and returns it sorted.
func LoadNormTable(path string) (NormTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening norms file: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := ParseNorms(f)
	if err != nil {
		return nil, fmt.Errorf("parsing norms file %s: %w", path, err)
	}
	return SortNorms(entries), nil
}

// WriteNorms writes the table in the format ParseNorms reads.
func WriteNorms(w io.Writer, t NormTable) error {
	for _, e := range t {
		if _, err := fmt.Fprintf(w, "%s %s\n", e.Filename, strconv.FormatFloat(e.Value, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}

// NormRequest parameterizes the external science-norm computation.
type NormRequest struct {
	DarkmasterPath string
	Files          []string // absolute or frame-dir-relative paths of the science frames
	FrameDir       string
	BufferSize     int
	ImageSize      int
	OutputName     string
}

// Normalizer computes per-frame norms and returns the path of the norms file
// it wrote.
type Normalizer interface {
	ComputeNorms(ctx context.Context, req NormRequest) (string, error)
}

// NormResolver produces the sorted science and dark NormTables. A configured
// override source always replaces the computed norms; the two are never merged.
type NormResolver struct {
	Config     *Config
	Normalizer Normalizer
	Log        logrus.FieldLogger
}

// ScienceNorms resolves the norms of the cleaned science frames.
func (r *NormResolver) ScienceNorms(ctx context.Context, science []string, frameDir string) (NormTable, error) {
	if alt := r.Config.AltScienceNorms; alt != "" {
		r.Log.Infof("Using alternative science norms from %s", alt)
		return r.load("science", alt)
	}
	if len(science) == 0 {
		r.Log.Warn("No science frames to normalize")
		return NormTable{}, nil
	}
	path, err := r.Normalizer.ComputeNorms(ctx, NormRequest{
		DarkmasterPath: r.Config.DarkmasterPath,
		Files:          framePaths(frameDir, science),
		FrameDir:       frameDir,
		BufferSize:     r.Config.NormBufferSize,
		ImageSize:      r.Config.FullImageSize,
		OutputName:     r.Config.ScienceNormsFilename,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: computing science norms: %w", ErrNormResolution, err)
	}
	return r.load("science", path)
}

// DarkNorms resolves the dark-frame norms, defaulting to the norms file
// written by the calibration synthesizer.
func (r *NormResolver) DarkNorms(artifacts CalibrationArtifacts) (NormTable, error) {
	path := artifacts.DarkNorms
	if alt := r.Config.AltDarkNorms; alt != "" {
		r.Log.Infof("Using alternative dark norms from %s", alt)
		path = alt
	}
	return r.load("dark", path)
}

func (r *NormResolver) load(kind, path string) (NormTable, error) {
	table, err := LoadNormTable(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s norms: %w", ErrNormResolution, kind, err)
	}
	s := table.Summary()
	r.Log.WithFields(logrus.Fields{
		"count":  s.Count,
		"median": s.Median,
		"mean":   s.Mean,
	}).Infof("Resolved %s norms from %s", kind, path)
	return table, nil
}

func framePaths(dir string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(dir, n)
	}
	return out
}

package reduce

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// MetadataStore maps filenames to their FrameRecords. It is built once per
// run (or loaded wholesale from the cache) and read-only afterwards.
type MetadataStore struct {
	records map[string]FrameRecord
	order   []string
}

// NewMetadataStore indexes records by filename. Filenames must be unique.
func NewMetadataStore(records []FrameRecord) (*MetadataStore, error) {
	s := &MetadataStore{records: make(map[string]FrameRecord, len(records))}
	for _, r := range records {
		name := r.Filename()
		if name == "" {
			return nil, fmt.Errorf("frame record without %s", FilenameKey)
		}
		if _, dup := s.records[name]; dup {
			return nil, fmt.Errorf("duplicate frame filename %q", name)
		}
		s.records[name] = r
		s.order = append(s.order, name)
	}
	sort.Slice(s.order, func(i, j int) bool { return NaturalLess(s.order[i], s.order[j]) })
	return s, nil
}

// Len reports the number of records.
func (s *MetadataStore) Len() int { return len(s.order) }

// Get returns the record for filename.
func (s *MetadataStore) Get(filename string) (FrameRecord, bool) {
	r, ok := s.records[filename]
	return r, ok
}

// Filenames returns every filename in natural order. The order is the same
// whether the store was freshly extracted or loaded from the cache.
func (s *MetadataStore) Filenames() []string {
	return append([]string(nil), s.order...)
}

// Records returns the records in Filenames order.
func (s *MetadataStore) Records() []FrameRecord {
	out := make([]FrameRecord, len(s.order))
	for i, name := range s.order {
		out[i] = s.records[name]
	}
	return out
}

// Documents returns the authoritative filename -> fields mapping.
func (s *MetadataStore) Documents() map[string]map[string]any {
	docs := make(map[string]map[string]any, len(s.records))
	for name, r := range s.records {
		docs[name] = r.Fields()
	}
	return docs
}

// TableColumns returns the TSV header: the filename column followed by the
// first record's remaining keys in sorted order. Later records with extra
// keys are flattened onto this column set; the JSON document keeps them.
func (s *MetadataStore) TableColumns() []string {
	if len(s.order) == 0 {
		return []string{FilenameKey}
	}
	first := s.records[s.order[0]]
	cols := make([]string, 0, first.Len())
	for _, k := range first.Keys() {
		if k != FilenameKey {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return append([]string{FilenameKey}, cols...)
}

// MetadataCache persists a MetadataStore as a TSV table plus a JSON document
// store. Only the JSON document is read back; the table is for humans.
type MetadataCache struct {
	TSVPath  string
	JSONPath string
}

// NewMetadataCache returns the cache located at the configured output name.
func NewMetadataCache(cfg *Config) *MetadataCache {
	tsv, js := cfg.CachePaths()
	return &MetadataCache{TSVPath: tsv, JSONPath: js}
}

// Complete reports whether both artifacts exist. A lone artifact means an
// interrupted write and counts as no cache at all.
func (c *MetadataCache) Complete() bool {
	return fileExists(c.TSVPath) && fileExists(c.JSONPath)
}

// Load reads the JSON document store.
func (c *MetadataCache) Load() (*MetadataStore, error) {
	data, err := os.ReadFile(c.JSONPath)
	if err != nil {
		return nil, fmt.Errorf("reading metadata cache: %w", err)
	}
	var docs map[string]map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing metadata cache %s: %w", c.JSONPath, err)
	}
	records := make([]FrameRecord, 0, len(docs))
	for name, fields := range docs {
		records = append(records, NewFrameRecord(name, fields))
	}
	return NewMetadataStore(records)
}

// Save writes both artifacts, each through a temp file and rename. The JSON
// document goes last so a crash never leaves a JSON without its table.
func (c *MetadataCache) Save(s *MetadataStore) error {
	if err := writeFileAtomic(c.TSVPath, func(w io.Writer) error { return writeTable(w, s) }); err != nil {
		return fmt.Errorf("writing metadata table: %w", err)
	}
	err := writeFileAtomic(c.JSONPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s.Documents())
	})
	if err != nil {
		return fmt.Errorf("writing metadata documents: %w", err)
	}
	return nil
}

func writeTable(w io.Writer, s *MetadataStore) error {
	cols := s.TableColumns()
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.Write(cols); err != nil {
		return fmt.Errorf("writing TSV header: %w", err)
	}
	for _, r := range s.Records() {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = r.String(col)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing TSV row %s: %w", r.Filename(), err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// StoreBuild is the outcome of LoadOrBuild.
type StoreBuild struct {
	Store     *MetadataStore
	Failures  []ExtractFailure
	FromCache bool
}

// LoadOrBuild returns the cached store when both artifacts exist. Otherwise
// it discovers and extracts the raw frames in frameDir, then persists the
// result. The cache is not written when any frame failed extraction, so the
// next run retries those frames.
func LoadOrBuild(ctx context.Context, cfg *Config, cache *MetadataCache, ext *Extractor, frameDir string, log logrus.FieldLogger) (*StoreBuild, error) {
	if cache.Complete() {
		log.Infof("Found %s and %s, reading cached metadata instead of extracting", cache.JSONPath, cache.TSVPath)
		store, err := cache.Load()
		if err != nil {
			return nil, err
		}
		if store.Len() == 0 {
			return nil, &EmptyInputError{What: "frames in metadata cache " + cache.JSONPath}
		}
		return &StoreBuild{Store: store, FromCache: true}, nil
	}

	paths, err := DiscoverFrames(cfg, frameDir)
	if err != nil {
		return nil, err
	}
	records, failures, err := ext.Extract(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &EmptyInputError{What: "readable raw frames", Dir: frameDir}
	}
	store, err := NewMetadataStore(records)
	if err != nil {
		return nil, err
	}

	if len(failures) > 0 {
		log.Warnf("%d frames failed extraction; not writing metadata cache", len(failures))
	} else {
		log.Infof("Building %s and %s (%s frames)", cache.TSVPath, cache.JSONPath, humanize.Comma(int64(store.Len())))
		if err := cache.Save(store); err != nil {
			return nil, err
		}
	}
	return &StoreBuild{Store: store, Failures: failures}, nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

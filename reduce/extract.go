package reduce

import (
	"context"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// HeaderReader reads the primary header of one frame file.
// Implementations must be safe for concurrent use.
type HeaderReader interface {
	ReadHeader(path string) (map[string]any, error)
}

// ExtractFailure names a frame whose header could not be read.
type ExtractFailure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Extractor turns raw frame paths into FrameRecords using a bounded pool of
// workers. Each worker owns one result slot, so the merge needs no locking.
type Extractor struct {
	Reader  HeaderReader
	Workers int
	Log     logrus.FieldLogger
}

type extractResult struct {
	record FrameRecord
	err    error
}

// Extract reads every path. Records are returned in input order; unreadable
// files are reported separately and never abort the other units of work.
// The only returned error is context cancellation.
func (x *Extractor) Extract(ctx context.Context, paths []string) ([]FrameRecord, []ExtractFailure, error) {
	if len(paths) == 0 {
		return nil, nil, &EmptyInputError{What: "raw frames"}
	}
	workers := x.Workers
	if workers < 1 {
		workers = 1
	}
	log := x.logger()
	log.Infof("Extracting metadata from %s frames with %d workers", humanize.Comma(int64(len(paths))), workers)

	results := make([]extractResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			header, err := x.Reader.ReadHeader(path)
			if err != nil {
				results[i] = extractResult{err: err}
				return nil
			}
			results[i] = extractResult{record: NewFrameRecord(filepath.Base(path), header)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	records := make([]FrameRecord, 0, len(paths))
	var failures []ExtractFailure
	for i, r := range results {
		if r.err != nil {
			log.WithField("file", paths[i]).Warnf("Header extraction failed: %v", r.err)
			failures = append(failures, ExtractFailure{Path: paths[i], Err: r.err.Error()})
			continue
		}
		records = append(records, r.record)
	}
	return records, failures, nil
}

func (x *Extractor) logger() logrus.FieldLogger {
	if x.Log == nil {
		return logrus.StandardLogger()
	}
	return x.Log
}

// Package reduce implements the FINDR reduction pipeline for adaptive-optics
// imaging frames.
//
// # Reading Guide
//
// The pipeline runs in a fixed sequence of stages:
//   - discover.go: raw frame discovery (derived products are skipped)
//   - extract.go: header extraction across a bounded worker pool
//   - store.go: the metadata store and its TSV/JSON cache
//   - classify.go: bucketing by frame type and the loop-state cleaning pass
//   - norms.go, shifts.go: normalization and shift tables
//   - calibrate.go: master dark synthesis
//   - subtract.go: per-frame dark subtraction and recentering
//   - pipeline.go: the orchestrator tying the stages together
//
// # External Collaborators
//
// Header I/O and the external calibration executables are reached through
// small interfaces (HeaderReader, Normalizer, DarkBuilder, FrameProcessor).
// Production implementations live in sub-packages:
//   - reduce/fitsmeta/: FITS header reader
//   - reduce/tools/: exec-backed darkmaster, darksub and fitscent wrappers
//
// The cmd package wires them together; tests substitute the fakes from
// internal/testutil.
package reduce

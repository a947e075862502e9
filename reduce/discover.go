package reduce

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverFrames lists the raw frames in dir: regular files (or links to
// them) with the configured extension whose names do not carry a
// derived-product prefix.
// Paths are returned in natural filename order.
func DiscoverFrames(cfg *Config, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing frame directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !isRawFrame(cfg, e.Name()) {
			continue
		}
		// Stat follows symlinks; frames are often linked in from an archive.
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, &EmptyInputError{What: "raw frames", Dir: dir}
	}
	sort.Slice(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

func isRawFrame(cfg *Config, name string) bool {
	if !strings.HasSuffix(name, cfg.FrameExtension) {
		return false
	}
	for _, p := range cfg.ExcludedPrefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}

// Package fitsmeta reads primary FITS headers into generic field maps.
package fitsmeta

import (
	"fmt"
	"os"

	"github.com/astrogo/fitsio"
)

// Reader implements reduce.HeaderReader for FITS files. It holds no state
// and is safe for concurrent use.
type Reader struct{}

// ReadHeader returns the cards of the primary HDU keyed by name.
// Commentary cards are returned like any other; callers drop what they
// do not need.
func (Reader) ReadHeader(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer func() { _ = f.Close() }()

	ff, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FITS %s: %w", path, err)
	}
	defer func() { _ = ff.Close() }()

	if len(ff.HDUs()) == 0 {
		return nil, fmt.Errorf("FITS %s has no HDU", path)
	}
	hdr := ff.HDU(0).Header()
	fields := make(map[string]any, len(hdr.Keys()))
	for _, key := range hdr.Keys() {
		card := hdr.Get(key)
		if card == nil {
			continue
		}
		fields[key] = card.Value
	}
	return fields, nil
}

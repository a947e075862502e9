package reduce

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaturalLess_Ordering(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"frame_9.fits", "frame_10.fits", true},
		{"frame_10.fits", "frame_9.fits", false},
		{"a.fits", "b.fits", true},
		{"frame_007.fits", "frame_7.fits", true}, // numerically equal, byte order decides
		{"frame_7.fits", "frame_007.fits", false},
		{"frame", "frame_1", true},
		{"x.fits", "x.fits", false},
		{"V47_20121124034459112941.fits", "V47_20121124034459112942.fits", true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"<"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalLess(tt.a, tt.b))
		})
	}
}

func TestNaturalLess_IsTotalOrder(t *testing.T) {
	// GIVEN names that differ only in leading zeros and digit widths
	names := []string{"f10", "f010", "f9", "f09", "f1a", "f01a", "fa", "f"}

	// THEN for every distinct pair exactly one direction holds
	for _, a := range names {
		for _, b := range names {
			if a == b {
				assert.False(t, NaturalLess(a, b))
				continue
			}
			assert.NotEqual(t, NaturalLess(a, b), NaturalLess(b, a), "%q vs %q", a, b)
		}
	}

	// AND sorting is reproducible regardless of input order
	first := append([]string(nil), names...)
	sort.Slice(first, func(i, j int) bool { return NaturalLess(first[i], first[j]) })
	reversed := append([]string(nil), names...)
	sort.Sort(sort.Reverse(sort.StringSlice(reversed)))
	sort.Slice(reversed, func(i, j int) bool { return NaturalLess(reversed[i], reversed[j]) })
	assert.Equal(t, first, reversed)
}

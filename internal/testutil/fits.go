package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Card is one header keyword for WriteFITS. Value may be a string, bool,
// int or float64.
type Card struct {
	Key   string
	Value any
}

const fitsBlock = 2880

// WriteFITS writes a minimal 2x2 8-bit FITS image with the given extra
// header cards and returns its path.
func WriteFITS(t *testing.T, dir, name string, cards ...Card) string {
	t.Helper()
	var hdr strings.Builder
	base := []Card{
		{"SIMPLE", true},
		{"BITPIX", 8},
		{"NAXIS", 2},
		{"NAXIS1", 2},
		{"NAXIS2", 2},
	}
	for _, c := range append(base, cards...) {
		hdr.WriteString(formatCard(c))
	}
	hdr.WriteString(fmt.Sprintf("%-80s", "END"))
	data := []byte(hdr.String())
	data = append(data, []byte(strings.Repeat(" ", pad(len(data))))...)

	pixels := []byte{1, 2, 3, 4}
	data = append(data, pixels...)
	data = append(data, make([]byte, pad(len(pixels)))...)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing FITS fixture %s: %v", path, err)
	}
	return path
}

func formatCard(c Card) string {
	var value string
	switch v := c.Value.(type) {
	case string:
		if c.Key == "COMMENT" || c.Key == "HISTORY" {
			return fmt.Sprintf("%-8s%-72s", c.Key, v)
		}
		quoted := "'" + strings.ReplaceAll(fmt.Sprintf("%-8s", v), "'", "''") + "'"
		value = fmt.Sprintf("%-20s", quoted)
	case bool:
		b := "F"
		if v {
			b = "T"
		}
		value = fmt.Sprintf("%20s", b)
	case int:
		value = fmt.Sprintf("%20d", v)
	case float64:
		value = fmt.Sprintf("%20s", fmt.Sprintf("%G", v))
	default:
		value = fmt.Sprintf("%20v", v)
	}
	return fmt.Sprintf("%-80s", fmt.Sprintf("%-8s= %s", c.Key, value))
}

func pad(n int) int {
	if r := n % fitsBlock; r != 0 {
		return fitsBlock - r
	}
	return 0
}

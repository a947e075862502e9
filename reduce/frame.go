package reduce

import (
	"fmt"
	"math"
	"strings"
)

// Reserved header keys.
const (
	// FilenameKey is injected into every record and holds the frame's base name.
	FilenameKey = "FILENAME"
	// CommentKey is free-text commentary; it is dropped during extraction.
	CommentKey = "COMMENT"
)

// Frame type tags used by the pipeline. Other tags are carried through
// classification untouched.
const (
	TypeDark    = "DARK"
	TypeScience = "SCIENCE"
)

// LoopOpen is the control-loop state that disqualifies a science frame.
const LoopOpen = "OPEN"

// FrameRecord is the metadata of one raw frame: an open-ended set of header
// fields plus the injected filename. Records are immutable once built.
type FrameRecord struct {
	fields map[string]any
}

// NewFrameRecord builds a record for filename from raw header fields.
// Values are normalized (numbers to float64, strings trimmed) and the
// commentary field is dropped. The input map is not retained.
func NewFrameRecord(filename string, header map[string]any) FrameRecord {
	fields := make(map[string]any, len(header)+1)
	for k, v := range header {
		if k == CommentKey || k == "" {
			continue
		}
		fields[k] = NormalizeValue(v)
	}
	fields[FilenameKey] = filename
	return FrameRecord{fields: fields}
}

// Filename returns the record's key in the metadata store.
func (r FrameRecord) Filename() string {
	return r.String(FilenameKey)
}

// Get returns the raw value of a header field.
func (r FrameRecord) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// String returns a header field rendered as a trimmed string, or "" if absent.
func (r FrameRecord) String(key string) string {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// Keys returns the record's field names in unspecified order.
func (r FrameRecord) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	return keys
}

// Fields returns a copy of the field mapping.
func (r FrameRecord) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Len reports the number of fields, including the filename.
func (r FrameRecord) Len() int { return len(r.fields) }

// TypeTag returns the frame-type tag stored under key, upper-cased.
func (r FrameRecord) TypeTag(key string) string {
	return strings.ToUpper(r.String(key))
}

// LoopState returns the control-loop state stored under key, upper-cased.
func (r FrameRecord) LoopState(key string) string {
	return strings.ToUpper(r.String(key))
}

// NormalizeValue maps a header value onto the small set of types that
// survive a JSON round trip unchanged: float64, bool, string and nil.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return strings.TrimSpace(x)
	case bool:
		return x
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// FormatValue renders a normalized value for the TSV table.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "T"
		}
		return "F"
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

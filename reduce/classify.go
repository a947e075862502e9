package reduce

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// ClassifiedSet maps a frame-type tag to the filenames of that type.
type ClassifiedSet map[string][]string

// Science returns the SCIENCE bucket.
func (c ClassifiedSet) Science() []string { return c[TypeScience] }

// Dark returns the DARK bucket.
func (c ClassifiedSet) Dark() []string { return c[TypeDark] }

// Types returns the bucket names in sorted order.
func (c ClassifiedSet) Types() []string {
	types := make([]string, 0, len(c))
	for t := range c {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Clone returns a deep copy.
func (c ClassifiedSet) Clone() ClassifiedSet {
	out := make(ClassifiedSet, len(c))
	for t, names := range c {
		out[t] = append([]string(nil), names...)
	}
	return out
}

// Classifier buckets frames by type tag and removes unusable science frames.
type Classifier struct {
	TypeKey      string
	LoopStateKey string
	Log          logrus.FieldLogger
}

// NewClassifier returns a classifier reading the configured header keys.
func NewClassifier(cfg *Config, log logrus.FieldLogger) *Classifier {
	return &Classifier{TypeKey: cfg.TypeKey, LoopStateKey: cfg.LoopStateKey, Log: log}
}

// Sort groups every record by its type tag, preserving store order within
// each bucket. Records without a type tag are left out and logged.
func (c *Classifier) Sort(store *MetadataStore) ClassifiedSet {
	set := make(ClassifiedSet)
	for _, r := range store.Records() {
		tag := r.TypeTag(c.TypeKey)
		if tag == "" {
			c.logger().WithField("file", r.Filename()).Warnf("No %s header, frame left unclassified", c.TypeKey)
			continue
		}
		set[tag] = append(set[tag], r.Filename())
	}
	return set
}

// Clean drops science frames taken with the control loop open. Every other
// bucket passes through unchanged. The input set is not modified, and
// cleaning an already cleaned set returns an equal set.
func (c *Classifier) Clean(sorted ClassifiedSet, store *MetadataStore) ClassifiedSet {
	cleaned := sorted.Clone()
	science, ok := cleaned[TypeScience]
	if !ok {
		return cleaned
	}
	kept := make([]string, 0, len(science))
	for _, name := range science {
		if r, found := store.Get(name); found && r.LoopState(c.LoopStateKey) == LoopOpen {
			c.logger().WithField("file", name).Debugf("%s is %s, dropping science frame", c.LoopStateKey, LoopOpen)
			continue
		}
		kept = append(kept, name)
	}
	if dropped := len(science) - len(kept); dropped > 0 {
		c.logger().Infof("Removed %d open-loop science frames", dropped)
	}
	cleaned[TypeScience] = kept
	return cleaned
}

func (c *Classifier) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

package reduce

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for the optional configuration keys.
const (
	DefaultNormBufferSize       = 1000
	DefaultScienceNormsFilename = "all_science_norms.norms"
	DefaultTypeKey              = "VIMTYPE"
	DefaultLoopStateKey         = "AOLOOPST"
	DefaultFrameExtension       = ".fits"
)

// DefaultExcludedPrefixes mark derived products (centered, dark-subtracted)
// that must never be picked up again as raw frames.
var DefaultExcludedPrefixes = []string{"cent", "dsub"}

// Config is the run-scoped configuration. It is built once at startup,
// validated, and then shared read-only by every stage.
type Config struct {
	MaxProcesses       int    `yaml:"max_processes"`
	FileShifts         string `yaml:"fileshifts"`
	DarkmasterPath     string `yaml:"darkmaster_path"`
	DarksubPath        string `yaml:"darksub_path"`
	FitscentPath       string `yaml:"fitscent_path"`
	OutputFilename     string `yaml:"outputfname"`
	SmoothWindow       int    `yaml:"smooth_window"`
	DarkListFilename   string `yaml:"darklist_filename"`
	MasterDarkFilename string `yaml:"masterdark_filename"`
	DarkNormsFilename  string `yaml:"darknorms_filename"`
	FullImageSize      int    `yaml:"fullimage_size"`

	// Override sources. Empty means unset.
	AltScienceNorms string `yaml:"alt_scinorms"`
	AltDarkNorms    string `yaml:"alt_darknorms"`

	NormBufferSize       int      `yaml:"norm_buffer_size"`
	ScienceNormsFilename string   `yaml:"science_norms_filename"`
	TypeKey              string   `yaml:"type_key"`
	LoopStateKey         string   `yaml:"loop_state_key"`
	ExcludedPrefixes     []string `yaml:"excluded_prefixes"`
	FrameExtension       string   `yaml:"frame_extension"`
}

// configSection is the top-level key holding every setting. Other
// top-level sections of a shared file are ignored.
const configSection = "findr"

// LoadConfig reads, defaults and validates a YAML configuration file.
// Every failure is reported as a *ConfigError.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: "reading config " + path, Cause: err}
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration document. Unknown keys inside
// the findr section are rejected so that typos fail loudly instead of
// silently using defaults.
func ParseConfig(data []byte) (*Config, error) {
	var sections map[string]yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&sections); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, configErrorf("", "config is empty")
		}
		return nil, &ConfigError{Msg: "parsing config", Cause: err}
	}
	node, ok := sections[configSection]
	if !ok {
		return nil, configErrorf(configSection, "missing section")
	}

	section, err := yaml.Marshal(&node)
	if err != nil {
		return nil, &ConfigError{Key: configSection, Msg: "reading section", Cause: err}
	}
	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(section))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Key: configSection, Msg: "parsing section", Cause: err}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NormBufferSize == 0 {
		c.NormBufferSize = DefaultNormBufferSize
	}
	if c.ScienceNormsFilename == "" {
		c.ScienceNormsFilename = DefaultScienceNormsFilename
	}
	if c.TypeKey == "" {
		c.TypeKey = DefaultTypeKey
	}
	if c.LoopStateKey == "" {
		c.LoopStateKey = DefaultLoopStateKey
	}
	if c.ExcludedPrefixes == nil {
		c.ExcludedPrefixes = append([]string(nil), DefaultExcludedPrefixes...)
	}
	if c.FrameExtension == "" {
		c.FrameExtension = DefaultFrameExtension
	}
}

// Validate checks every required key. Optional override sources are not
// checked for existence here; a missing override file fails norm resolution.
func (c *Config) Validate() error {
	if c.MaxProcesses < 1 {
		return configErrorf("max_processes", "must be >= 1, got %d", c.MaxProcesses)
	}
	if c.SmoothWindow < 1 {
		return configErrorf("smooth_window", "must be >= 1, got %d", c.SmoothWindow)
	}
	if c.FullImageSize < 1 {
		return configErrorf("fullimage_size", "must be >= 1, got %d", c.FullImageSize)
	}
	if c.NormBufferSize < 1 {
		return configErrorf("norm_buffer_size", "must be >= 1, got %d", c.NormBufferSize)
	}
	required := []struct {
		key, value string
	}{
		{"fileshifts", c.FileShifts},
		{"darkmaster_path", c.DarkmasterPath},
		{"darksub_path", c.DarksubPath},
		{"fitscent_path", c.FitscentPath},
		{"outputfname", c.OutputFilename},
		{"darklist_filename", c.DarkListFilename},
		{"masterdark_filename", c.MasterDarkFilename},
		{"darknorms_filename", c.DarkNormsFilename},
	}
	for _, r := range required {
		if r.value == "" {
			return configErrorf(r.key, "required key is missing")
		}
	}
	return nil
}

// CachePaths returns the TSV table and JSON document paths of the metadata cache.
func (c *Config) CachePaths() (tsvPath, jsonPath string) {
	return c.OutputFilename + ".tsv", c.OutputFilename + ".json"
}

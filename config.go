package pitchtrack

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one analysis run: detector framing plus the
// post-processing parameters.
type Config struct {
	Detector     string  `yaml:"detector" json:"detector"`
	FrameLength  int     `yaml:"frame_length" json:"frameLength"`
	HopLength    int     `yaml:"hop_length" json:"hopLength"`
	Fmin         float64 `yaml:"fmin" json:"fmin"`
	Fmax         float64 `yaml:"fmax" json:"fmax"`
	YinThreshold float64 `yaml:"yin_threshold" json:"yinThreshold"`
	Workers      int     `yaml:"workers" json:"workers"`
	LogLevel     string  `yaml:"log_level" json:"logLevel"`

	Params `yaml:",inline" json:"params"`
}

func DefaultConfig() Config {
	return Config{
		Detector:    DetectorPyin,
		FrameLength: 2048,
		HopLength:   512,
		Fmin:        80,
		Fmax:        800,
		Workers:     4,
		LogLevel:    "info",
		Params:      DefaultParams(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadConfigFromReader(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromReader decodes YAML from r. Unknown keys are rejected and
// missing keys keep their defaults.
func LoadConfigFromReader(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns all problems joined; parameter errors match
// ErrInvalidParameter.
func (cfg Config) Validate() error {
	var errs []error
	switch cfg.Detector {
	case DetectorPyin, DetectorYin:
	default:
		errs = append(errs, fmt.Errorf("%w: detector %q is invalid; valid values: pyin, yin", ErrInvalidParameter, cfg.Detector))
	}
	if cfg.FrameLength < 4 {
		errs = append(errs, fmt.Errorf("%w: frame_length must be >= 4: %d", ErrInvalidParameter, cfg.FrameLength))
	}
	if cfg.HopLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: hop_length must be > 0: %d", ErrInvalidParameter, cfg.HopLength))
	}
	if !(cfg.Fmin > 0) || !(cfg.Fmax > cfg.Fmin) {
		errs = append(errs, fmt.Errorf("%w: need 0 < fmin < fmax, got %v and %v", ErrInvalidParameter, cfg.Fmin, cfg.Fmax))
	}
	if cfg.YinThreshold < 0 || cfg.YinThreshold >= 1 {
		errs = append(errs, fmt.Errorf("%w: yin_threshold must be in [0,1): %v", ErrInvalidParameter, cfg.YinThreshold))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers must be >= 0: %d", ErrInvalidParameter, cfg.Workers))
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if err := cfg.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

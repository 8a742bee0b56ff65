// Package config holds the runtime settings of hearthis-dl: defaults, an
// optional YAML settings file, and validation. Command-line flags overlay
// file values in cmd/hearthis-dl.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Settings holds all configuration options.
type Settings struct {
	// Output
	OutputPath   string `yaml:"output_path"`
	ArtistPrefix bool   `yaml:"artist_prefix"`
	NoSubfolder  bool   `yaml:"no_subfolder"`

	// Member selection
	Interval string `yaml:"interval"` // e.g. "3-7", "3-", "-7"; empty selects all

	// Skip rules
	SkipExisting bool   `yaml:"skip_existing"`
	ArchivePath  string `yaml:"archive_path"` // empty disables archive mode

	// Tagging
	KeepOriginalTags bool   `yaml:"keep_original_tags"`
	DescriptionPick  string `yaml:"description_pick"` // last, first

	// Conversion
	ConversionPolicy string `yaml:"conversion_policy"` // none, flac, flac16, flacmin, onlymp3

	// Download behavior
	Concurrency           int     `yaml:"concurrency"`
	DownloadMaxRetries    int     `yaml:"download_max_retries"`
	DownloadRetryCooldown float64 `yaml:"download_retry_cooldown"`
	DownloadRetryExponent float64 `yaml:"download_retry_exponent"`
	ShowProgress          bool    `yaml:"show_progress"`

	// Cover art
	CoverMaxSize int `yaml:"cover_max_size"`
}

// DefaultSettings returns settings with default values. Concurrency 1 means
// playlist members download strictly one after another.
func DefaultSettings() *Settings {
	return &Settings{
		OutputPath:            ".",
		DescriptionPick:       "last",
		ConversionPolicy:      "none",
		Concurrency:           1,
		DownloadMaxRetries:    3,
		DownloadRetryCooldown: 0.5,
		DownloadRetryExponent: 3.0,
		ShowProgress:          true,
		CoverMaxSize:          1000,
	}
}

// Load reads settings from a YAML file, filling unset fields with defaults.
// A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return settings, nil
}

// Validate checks cross-field constraints before the pipeline starts.
func (s *Settings) Validate() error {
	if s.OutputPath == "" {
		return fmt.Errorf("output path must not be empty")
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}
	if s.DownloadMaxRetries < 1 {
		return fmt.Errorf("download_max_retries must be at least 1, got %d", s.DownloadMaxRetries)
	}
	switch s.DescriptionPick {
	case "", "last", "first":
	default:
		return fmt.Errorf("description_pick must be \"last\" or \"first\", got %q", s.DescriptionPick)
	}
	switch s.ConversionPolicy {
	case "", "none", "flac", "flac16", "flacmin", "onlymp3":
	default:
		return fmt.Errorf("unknown conversion_policy %q", s.ConversionPolicy)
	}
	if s.CoverMaxSize < 1 {
		return fmt.Errorf("cover_max_size must be positive, got %d", s.CoverMaxSize)
	}
	return nil
}

// Package config loads user-adjustable settings read by the build engine.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Bounds for numeric settings. Values outside a range are ignored.
const (
	MinWatchIntervalMS     = 50
	MaxWatchIntervalMS     = 60000
	DefaultWatchIntervalMS = 500
)

// Settings holds the effective configuration.
type Settings struct {
	// LiveCompiling submits a compile on every edit. When false, compiles
	// only run on explicit request.
	LiveCompiling bool

	// LiveBuilding reuses cached definitions across builds. When false,
	// every definition is rebuilt on every cycle.
	LiveBuilding bool

	// FairAbstraction is passed through to the parser.
	FairAbstraction bool

	// WatchIntervalMS is the polling period of the watch command.
	WatchIntervalMS int
}

// WatchInterval returns WatchIntervalMS as a duration.
func (s Settings) WatchInterval() time.Duration {
	return time.Duration(s.WatchIntervalMS) * time.Millisecond
}

// Defaults returns the settings used when no file is given.
func Defaults() Settings {
	return Settings{
		LiveCompiling:   true,
		LiveBuilding:    true,
		FairAbstraction: true,
		WatchIntervalMS: DefaultWatchIntervalMS,
	}
}

// File is the on-disk settings.yaml format. Omitted fields keep their
// current value.
type File struct {
	LiveCompiling   *bool `yaml:"live_compiling,omitempty"`
	LiveBuilding    *bool `yaml:"live_building,omitempty"`
	FairAbstraction *bool `yaml:"fair_abstraction,omitempty"`
	WatchIntervalMS *int  `yaml:"watch_interval_ms,omitempty"`
}

// Apply returns s updated with every field set in f.
//
// Numeric values outside their declared range are ignored and the previous
// value is retained; this is logged but is not an error.
func (s Settings) Apply(f File) Settings {
	if f.LiveCompiling != nil {
		s.LiveCompiling = *f.LiveCompiling
	}
	if f.LiveBuilding != nil {
		s.LiveBuilding = *f.LiveBuilding
	}
	if f.FairAbstraction != nil {
		s.FairAbstraction = *f.FairAbstraction
	}
	if f.WatchIntervalMS != nil {
		v := *f.WatchIntervalMS
		if inRange(v, MinWatchIntervalMS, MaxWatchIntervalMS) {
			s.WatchIntervalMS = v
		} else {
			slog.Warn("setting out of range, keeping previous value",
				"setting", "watch_interval_ms",
				"value", v,
				"min", MinWatchIntervalMS,
				"max", MaxWatchIntervalMS,
				"kept", s.WatchIntervalMS,
			)
		}
	}
	return s
}

func inRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

// Parse decodes a settings file, rejecting unknown fields.
func Parse(data []byte) (File, error) {
	var f File
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return f, nil
}

// Load reads settings from path on top of Defaults. An empty path returns
// the defaults.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read settings file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return s, err
	}
	return s.Apply(f), nil
}

// Provider holds the current settings for concurrent readers.
// The engine only reads; the embedding application updates.
type Provider struct {
	mu       sync.RWMutex
	settings Settings
}

// NewProvider creates a provider holding s.
func NewProvider(s Settings) *Provider {
	return &Provider{settings: s}
}

// Settings returns a copy of the current settings.
func (p *Provider) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Update applies f to the current settings and returns the result.
func (p *Provider) Update(f File) Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = p.settings.Apply(f)
	return p.settings
}

// Set replaces the current settings.
func (p *Provider) Set(s Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}

// Package config loads go-ipameta job files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluedeke/go-ipameta/pkg/plistrename"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the job file nor the command line set a value
const (
	DefaultOutputDir = "output"
	DefaultPlistDir  = "/opt/1panel/apps/openresty/openresty/www/sites/res.lengshanyun.top/index"
)

// Config is a job file
type Config struct {
	Inputs    []string     `yaml:"inputs"`
	OutputDir string       `yaml:"output_dir"`
	StartID   int          `yaml:"start_id"`
	Rename    RenameConfig `yaml:"rename"`
}

// RenameConfig holds the plist renamer settings
type RenameConfig struct {
	Dir        string `yaml:"dir"`
	URLPrefix  string `yaml:"url_prefix"`
	NamePrefix string `yaml:"name_prefix"`
	LogFile    string `yaml:"log_file"`
}

// Default returns the built-in job
func Default() *Config {
	return &Config{
		Inputs:    []string{"1.ipa", "2.ipa"},
		OutputDir: DefaultOutputDir,
		Rename: RenameConfig{
			Dir:        DefaultPlistDir,
			URLPrefix:  plistrename.DefaultURLPrefix,
			NamePrefix: plistrename.DefaultNamePrefix,
		},
	}
}

// Load reads a job file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes job file contents on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have no sensible fallback
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if c.StartID < 0 {
		return fmt.Errorf("start_id must not be negative: %d", c.StartID)
	}
	if c.Rename.Dir == "" {
		return errors.New("rename.dir must not be empty")
	}
	return nil
}

// LogPath returns the renamer log file, by default inside the scanned directory
func (r RenameConfig) LogPath() string {
	if r.LogFile != "" {
		return r.LogFile
	}
	return filepath.Join(r.Dir, plistrename.DefaultLogName)
}

// Package config manages YAML-based configuration and validation of a mirror run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CageChen/modmirror/internal/ignore"
	"github.com/CageChen/modmirror/internal/match"
	"gopkg.in/yaml.v3"
)

// LocalFileName is the config file looked up in the working directory.
const LocalFileName = "modmirror.yaml"

// Validation errors.
var (
	ErrNoDestination  = errors.New("destination_root is required")
	ErrInvalidDirName = errors.New("dir_name must be a single path element")
)

// Config holds all configuration options for a mirror run
type Config struct {
	SourceRoot      string `yaml:"source_root" json:"source_root"`
	DestinationRoot string `yaml:"destination_root" json:"destination_root"`
	DirName         string `yaml:"dir_name" json:"dir_name"`

	// Quiet suppresses per-directory progress lines.
	Quiet bool `yaml:"quiet" json:"quiet"`

	// NoDevDependencies excludes directories named after devDependencies
	// of the manifest found in PackageDir.
	NoDevDependencies bool   `yaml:"no_dev_dependencies" json:"no_dev_dependencies"`
	PackageDir        string `yaml:"package_dir" json:"package_dir"`

	UseNpmignore bool   `yaml:"use_npmignore" json:"use_npmignore"`
	IgnoreFile   string `yaml:"ignore_file" json:"ignore_file"`

	NoIgnoreList bool     `yaml:"no_ignore_list" json:"no_ignore_list"`
	Ignore       []string `yaml:"ignore" json:"ignore"`
	Matcher      string   `yaml:"matcher" json:"matcher"`

	LogIgnored bool   `yaml:"log_ignored" json:"log_ignored"`
	LogToFile  bool   `yaml:"log_to_file" json:"log_to_file"`
	LogDir     string `yaml:"log_dir" json:"log_dir"`

	// GitRef reads the source tree from this ref of the repository at SourceRoot.
	GitRef string `yaml:"git_ref,omitempty" json:"git_ref,omitempty"`

	Listen string `yaml:"listen" json:"listen"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SourceRoot:        ".",
		DirName:           "node_modules",
		Quiet:             true,
		NoDevDependencies: true,
		UseNpmignore:      true,
		IgnoreFile:        ignore.DefaultFileName,
		Ignore:            append([]string(nil), ignore.DefaultPatterns...),
		Matcher:           match.EngineGlob,
		LogDir:            ".",
		Listen:            ":8090",
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/modmirror"
	}
	return filepath.Join(home, ".config", "modmirror")
}

// GetConfigPath returns the full path to the global config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load returns defaults overlaid with a config file. An explicit path must
// be readable; otherwise ./modmirror.yaml and then the global config file
// are tried, and finding neither is not an error.
func Load(explicit string) (*Config, error) {
	cfg := DefaultConfig()

	cfgPath := explicit
	if cfgPath == "" {
		for _, candidate := range []string{LocalFileName, GetConfigPath()} {
			if _, err := os.Stat(candidate); err == nil {
				cfgPath = candidate
				break
			}
		}
	}

	if cfgPath == "" {
		cfg.configPath = LocalFileName
		return cfg, nil
	}
	if err := cfg.loadFromFile(cfgPath); err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	cfg.configPath = cfgPath
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	if c.configPath == "" {
		c.configPath = LocalFileName
	}
	if dir := filepath.Dir(c.configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.configPath, data, 0o644)
}

// SetConfigFilePath sets where Save writes.
func (c *Config) SetConfigFilePath(path string) {
	c.configPath = path
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// Validate checks the configuration once before a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DestinationRoot) == "" {
		return ErrNoDestination
	}
	if c.DirName == "" || c.DirName == "." || c.DirName == ".." || strings.ContainsAny(c.DirName, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidDirName, c.DirName)
	}
	if _, err := match.New(c.Matcher, false); err != nil {
		return err
	}
	if !c.NoIgnoreList {
		if err := match.Validate(c.Ignore); err != nil {
			return fmt.Errorf("ignore: %w", err)
		}
	}
	return nil
}

// ManifestDir returns the directory holding package.json, relative to the
// working directory unless PackageDir is absolute.
func (c *Config) ManifestDir() string {
	if filepath.IsAbs(c.PackageDir) {
		return c.PackageDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return c.PackageDir
	}
	return filepath.Join(cwd, c.PackageDir)
}

// SourcePath returns the mirrored subtree on the source side, for display.
func (c *Config) SourcePath() string {
	return filepath.Join(c.SourceRoot, c.DirName)
}

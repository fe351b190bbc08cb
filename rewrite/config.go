package rewrite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gnoswap-labs/rewrite/internal/fixer"
)

const (
	// DefaultConfigFile is looked up in the working directory.
	DefaultConfigFile = ".rewrite.yaml"
	envPrefix         = "REWRITE"
)

// Config is the project configuration.
type Config struct {
	// Rules are the names of the rules to run.
	Rules []string `mapstructure:"rules" yaml:"rules"`
	// RuleFiles are YAML rule definitions loaded next to the built-ins.
	RuleFiles []string `mapstructure:"rule_files" yaml:"rule_files,omitempty"`
	// Extensions select the files the scanner picks up.
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Workers    int      `mapstructure:"workers" yaml:"workers"`
	// Conflict is the conflict policy: reject-file or reject-groups.
	Conflict string `mapstructure:"conflict" yaml:"conflict"`
	DryRun   bool   `mapstructure:"dry_run" yaml:"dry_run"`
	// Gemfile is the lockfile gem versions are read from. Gems override it.
	Gemfile string            `mapstructure:"gemfile" yaml:"gemfile"`
	Gems    map[string]string `mapstructure:"gems" yaml:"gems,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Rules:      []string{},
		Extensions: []string{".rb", ".rake"},
		Workers:    0,
		Conflict:   fixer.RejectFile.String(),
		Gemfile:    "Gemfile.lock",
	}
}

func applyDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("rules", d.Rules)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("conflict", d.Conflict)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("gemfile", d.Gemfile)
}

// LoadConfig reads path, or .rewrite.yaml in the working directory when
// path is empty. A missing default file is not an error. REWRITE_* variables
// override file values.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	applyDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, filepath.Ext(DefaultConfigFile)))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Workers < 0 {
		return &ConfigurationError{Err: fmt.Errorf("workers must not be negative, got %d", c.Workers)}
	}
	if _, err := fixer.ParsePolicy(c.Conflict); err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}

// Env builds the guard environment: lockfile versions relative to root,
// overridden by configured gems. A missing lockfile yields no gems.
func (c Config) Env(root string) (Env, error) {
	gems := make(map[string]string)
	if c.Gemfile != "" {
		lock := c.Gemfile
		if !filepath.IsAbs(lock) {
			lock = filepath.Join(root, lock)
		}
		locked, err := LoadGemfileLock(lock)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Env{}, fmt.Errorf("read %s: %w", lock, err)
		}
		for name, ver := range locked {
			gems[name] = ver
		}
	}
	for name, ver := range c.Gems {
		gems[name] = ver
	}
	return Env{Gems: gems}, nil
}

// WriteConfig writes cfg as YAML.
func WriteConfig(path string, cfg Config) error {
	d, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

// Package config loads lexgen settings from config files and environment
// variables using Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/typegen"
)

// Config holds all lexgen settings.
type Config struct {
	Generate GenerateConfig `mapstructure:"generate"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// GenerateConfig controls the generation pipeline.
type GenerateConfig struct {
	// Output is the directory generated files are written to.
	Output string `mapstructure:"output"`

	// Prefix filters which lexicon documents get generated.
	Prefix string `mapstructure:"prefix"`

	// Target selects the output language backend.
	Target string `mapstructure:"target"`

	// NoBuiltins disables the embedded com.atproto lexicons.
	NoBuiltins bool `mapstructure:"no_builtins"`
}

// CacheConfig controls the content-addressed output cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LogConfig controls logger output.
type LogConfig struct {
	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

var (
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load reads the configuration, caching the result.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the Viper instance for per-flag binding.
func GetViper() *viper.Viper {
	return initViper()
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// SetDefaults installs default values on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("generate.output", "generated")
	v.SetDefault("generate.prefix", "")
	v.SetDefault("generate.target", typegen.DefaultTarget)
	v.SetDefault("generate.no_builtins", false)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("LEXGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		// A present but unreadable config file is ignored; env vars and
		// defaults still apply.
		_ = v.ReadInConfig()
	}

	viperInstance = v
	return v
}

// findProjectConfig searches for lexgen.toml by walking up the directory
// tree from the working directory.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "lexgen.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

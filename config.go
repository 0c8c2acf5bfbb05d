package restyle

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type Config struct {
	Rules       RulesConfig `yaml:"rules" mapstructure:"rules"`
	Modfile     string      `yaml:"modfile" mapstructure:"modfile"`
	Incremental bool        `yaml:"incremental" mapstructure:"incremental"`
	CacheFile   string      `yaml:"cache_file" mapstructure:"cache_file"`
	Excluded    []string    `yaml:"excluded" mapstructure:"excluded"`
}

type RulesConfig struct {
	Disabled           []string          `yaml:"disabled" mapstructure:"disabled"`
	LineLength         LimitRuleConfig   `yaml:"line_length" mapstructure:"line_length"`
	FileLength         LimitRuleConfig   `yaml:"file_length" mapstructure:"file_length"`
	ForbiddenImports   []ForbiddenImport `yaml:"forbidden_imports" mapstructure:"forbidden_imports"`
	TrailingWhitespace SeverityConfig    `yaml:"trailing_whitespace" mapstructure:"trailing_whitespace"`
}

// LimitRuleConfig configures a threshold rule. Crossing Warning reports a
// warning, crossing Error reports an error. Zero disables that threshold.
type LimitRuleConfig struct {
	Warning int `yaml:"warning" mapstructure:"warning"`
	Error   int `yaml:"error" mapstructure:"error"`
}

// SeverityConfig configures the severity of an on/off rule.
type SeverityConfig struct {
	Severity string `yaml:"severity" mapstructure:"severity"`
}

type ForbiddenImport struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Cause string `yaml:"cause" mapstructure:"cause"`
}

// Fingerprint returns a stable hash of the active configuration. Two
// runs with identical configuration produce the same fingerprint, which
// the result cache uses to detect configuration changes between runs.
func (c Config) Fingerprint() *int64 {
	data, err := json.Marshal(c)
	if err != nil {
		// A plain struct of strings, ints and slices always marshals.
		return nil
	}
	h := int64(xxhash.Sum64(data))
	return &h
}

func LoadConfig(fs afero.Fs, path string, cfgFile string) (Config, error) {
	viper.SetFs(fs)
	viper.SetConfigType("yml") // Always set the config type to yml

	// Check if cfgFile is a full path to a file
	fileInfo, statErr := fs.Stat(cfgFile)
	if statErr == nil && !fileInfo.IsDir() {
		// cfgFile is a full path to an existing file
		viper.SetConfigFile(cfgFile)
	} else {
		// Use the provided config file or default to config.yml
		if cfgFile != "" {
			// Handle case where cfgFile includes extension
			if strings.HasSuffix(cfgFile, ".yml") || strings.HasSuffix(cfgFile, ".yaml") {
				viper.SetConfigFile(cfgFile)
			} else {
				viper.SetConfigName(cfgFile)
			}
		} else {
			viper.SetConfigName("config")
		}

		viper.AddConfigPath(path)
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.restyle")
		viper.AddConfigPath("./.restyle")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return Config{}, NewConfigError("config file not found", err)
		}
		return Config{}, NewConfigError("failed loading config file", err)
	}

	viper.SetDefault("incremental", false)
	viper.SetDefault("modfile", "go.mod")
	viper.SetDefault("cache_file", ".restyle.cache")
	viper.SetDefault("rules.line_length.warning", 120)
	viper.SetDefault("rules.line_length.error", 200)
	viper.SetDefault("rules.file_length.warning", 400)
	viper.SetDefault("rules.file_length.error", 1000)
	viper.SetDefault("rules.trailing_whitespace.severity", "warning")

	var config Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return Config{}, NewConfigError("failed unmarshaling config file", err)
	}

	return config, nil
}

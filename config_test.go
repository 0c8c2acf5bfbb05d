package restyle

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfigTestFile(t *testing.T) []byte {
	t.Helper()
	return []byte(`
incremental: true
cache_file: .restyle.cache
rules:
  line_length:
    warning: 100
    error: 160
  forbidden_imports:
    - name: unsafe
      cause: memory safety
excluded:
  - vendor
`)
}

func TestLoadConfig(t *testing.T) {
	tests := map[string]struct {
		setupConfigFile func(fs afero.Fs) error
		cfgFile         string
	}{
		"should load config from the current directory": {
			setupConfigFile: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "config", defaultConfigTestFile(t), 0o644)
			},
			cfgFile: "config",
		},
		"should load config from .restyle folder in the current directory": {
			setupConfigFile: func(fs afero.Fs) error {
				if err := fs.Mkdir(".restyle", 0o755); err != nil {
					return err
				}
				return afero.WriteFile(fs, ".restyle/config.yml", defaultConfigTestFile(t), 0o644)
			},
			cfgFile: ".restyle/config.yml",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			viper.Reset()
			memFs := afero.NewMemMapFs()
			require.NoError(t, test.setupConfigFile(memFs))

			config, err := LoadConfig(memFs, ".", test.cfgFile)
			require.NoError(t, err)

			assert.True(t, config.Incremental)
			assert.Equal(t, ".restyle.cache", config.CacheFile)
			assert.Equal(t, 100, config.Rules.LineLength.Warning)
			assert.Equal(t, 160, config.Rules.LineLength.Error)
			require.Len(t, config.Rules.ForbiddenImports, 1)
			assert.Equal(t, "unsafe", config.Rules.ForbiddenImports[0].Name)
			assert.Equal(t, []string{"vendor"}, config.Excluded)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "config", []byte("modfile: go.mod\n"), 0o644))

	config, err := LoadConfig(memFs, ".", "config")
	require.NoError(t, err)

	assert.False(t, config.Incremental)
	assert.Equal(t, ".restyle.cache", config.CacheFile)
	assert.Equal(t, 120, config.Rules.LineLength.Warning)
	assert.Equal(t, 200, config.Rules.LineLength.Error)
	assert.Equal(t, "warning", config.Rules.TrailingWhitespace.Severity)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	viper.Reset()
	memFs := afero.NewMemMapFs()

	_, err := LoadConfig(memFs, "/nowhere", "missing-config")
	require.Error(t, err)

	info, found := GetErrorInfo(err)
	require.True(t, found)
	assert.Equal(t, ErrorTypeConfig, info.Type)
}

func TestConfigFingerprint(t *testing.T) {
	base := Config{
		Rules: RulesConfig{
			LineLength: LimitRuleConfig{Warning: 100, Error: 160},
		},
		CacheFile: ".restyle.cache",
	}

	fp := base.Fingerprint()
	require.NotNil(t, fp)

	t.Run("stable for identical configs", func(t *testing.T) {
		same := Config{
			Rules: RulesConfig{
				LineLength: LimitRuleConfig{Warning: 100, Error: 160},
			},
			CacheFile: ".restyle.cache",
		}
		assert.Equal(t, *fp, *same.Fingerprint())
	})

	t.Run("changes when a rule changes", func(t *testing.T) {
		changed := base
		changed.Rules.LineLength.Warning = 80
		assert.NotEqual(t, *fp, *changed.Fingerprint())
	})

	t.Run("changes when exclusions change", func(t *testing.T) {
		changed := base
		changed.Excluded = []string{"vendor"}
		assert.NotEqual(t, *fp, *changed.Fingerprint())
	})
}

package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/vantagedata/metakeep/errors"
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "metakeep.db")
	v.SetDefault("log.json", false)
	v.SetDefault("audit.default_author", "")
}

// Load reads configuration from metakeep.toml in the working directory (if
// present), environment variables with the METAKEEP prefix, and defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("metakeep")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METAKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", configPath)
	}

	return unmarshal(v)
}

// LoadWithViper loads configuration using a provided Viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &config, nil
}

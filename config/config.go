// Package config loads metakeep configuration with Viper.
//
// Configuration is explicitly constructed and injected into component
// constructors; there is no cached global settings object.
package config

import (
	"github.com/vantagedata/metakeep/registry"
)

// Config represents the metakeep configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// AuditConfig configures audit-field defaults for writes.
type AuditConfig struct {
	// DefaultAuthor is used when a write carries no author.
	DefaultAuthor string `mapstructure:"default_author"`
}

// RegistryConfig extends the built-in meta-item registry. Entries with the
// same code override system definitions.
type RegistryConfig struct {
	Groups []registry.GroupDefinition `mapstructure:"groups"`
	Items  []registry.ItemDefinition  `mapstructure:"items"`
}

// BuildRegistry constructs the item registry from system defaults plus the
// configured extensions.
func (c *Config) BuildRegistry() *registry.Registry {
	return registry.New(c.Registry.Groups, c.Registry.Items)
}

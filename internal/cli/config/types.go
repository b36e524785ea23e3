// Package config provides configuration management for the LeapCQL
// CLI. Settings come from a leapcql.yaml file, LEAPCQL_* environment
// variables, and command-line flags, in increasing precedence.
package config

import (
	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// Config holds all CLI configuration options.
type Config struct {
	LibDir    string `koanf:"lib_dir"`
	StatePath string `koanf:"state_path"`
	NoCache   bool   `koanf:"no_cache"`
	Verbose   bool   `koanf:"verbose"`

	// Emission options, mirrored onto cql.CompilerOptions
	Annotations     bool `koanf:"annotations"`
	Locators        bool `koanf:"locators"`
	Debug           bool `koanf:"debug"`
	Placeholders    bool `koanf:"placeholders"`
	NoListTraversal bool `koanf:"no_list_traversal"`
}

// Default configuration values.
const (
	DefaultLibDir    = "libraries"
	DefaultStateFile = ".leapcql/state.db"
)

// CompilerOptions maps the configured emission settings onto compiler
// options.
func (c *Config) CompilerOptions() cql.CompilerOptions {
	return cql.CompilerOptions{
		EmitAnnotations:                  c.Annotations,
		EmitLocators:                     c.Locators,
		DebugMode:                        c.Debug,
		AlwaysEmitStructuralPlaceholders: c.Placeholders,
		DisableListTraversal:             c.NoListTraversal,
	}
}

// Default returns the configuration used when nothing else is loaded.
func Default() *Config {
	opts := cql.DefaultOptions()
	return &Config{
		LibDir:      DefaultLibDir,
		StatePath:   DefaultStateFile,
		Annotations: opts.EmitAnnotations,
		Locators:    opts.EmitLocators,
	}
}

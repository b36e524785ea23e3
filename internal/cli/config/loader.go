package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context. Shared with the
// cli package via LoggerKey.
type loggerKey struct{}

// Package-level koanf instance and config file tracking.
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile finds the config file to use.
// Priority: explicit path > leapcql.yaml > leapcql.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"leapcql.yaml", "leapcql.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config
// file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// Paths given as flags resolve against the working directory, not
	// the config file.
	var flagLibDir, flagStatePath string
	if flags != nil {
		if flags.Changed("lib-dir") {
			if v, _ := flags.GetString("lib-dir"); v != "" {
				flagLibDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("state") {
			if v, _ := flags.GetString("state"); v != "" && v != ":memory:" {
				flagStatePath, _ = filepath.Abs(v)
			} else {
				flagStatePath = v
			}
		}
	}

	// 1. Defaults
	defaults := Default()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"lib_dir":           defaults.LibDir,
		"state_path":        defaults.StatePath,
		"no_cache":          false,
		"verbose":           false,
		"annotations":       defaults.Annotations,
		"locators":          defaults.Locators,
		"debug":             false,
		"placeholders":      false,
		"no_list_traversal": false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: LEAPCQL_LIB_DIR -> lib_dir
	if err := k.Load(env.Provider("LEAPCQL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LEAPCQL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// The CLI uses --state for brevity; the config key is
			// state_path.
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Paths from the config file resolve against its directory; flag
	// paths were absolutized above.
	baseDir := ""
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			baseDir = filepath.Dir(abs)
		}
	}
	if flagLibDir != "" {
		cfg.LibDir = flagLibDir
	} else {
		cfg.LibDir = resolvePathRelativeTo(cfg.LibDir, baseDir)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else if cfg.StatePath != ":memory:" {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, baseDir)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// resolvePathRelativeTo resolves a path relative to baseDir unless it
// is empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// GetConfigFileUsed returns the path to the config file being used, if
// any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration from the last LoadConfig,
// or defaults when none was loaded.
func GetCurrentConfig() *Config {
	if currentConfig != nil {
		return currentConfig
	}
	return Default()
}

// LoggerKey returns the context key used for storing the logger. The
// commands package retrieves the logger through it without importing
// the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}

package config

import (
	"fmt"
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

// ConfigFileName is the default config file name.
const ConfigFileName = "pricesheet.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "pricesheet.yml"

// EnvPrefix is the environment variable prefix:
// PRICESHEET_TABS_DIR -> tabs_dir, PRICESHEET_FOLDERS__TEMPLATES ->
// folders.templates.
const EnvPrefix = "PRICESHEET_"

// findConfigFile finds the config file to use.
// Priority: explicit path > pricesheet.yaml > pricesheet.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"tabs_dir":           DefaultTabsDir,
		"state_path":         DefaultStateFile,
		"folders.quarantine": DefaultQuarantine,
		"poll_interval":      DefaultPollInterval.String(),
		"lock_staleness":     DefaultLockStaleness.String(),
		"retry_attempts":     DefaultRetryAttempts,
		"verbose":            false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed := findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables. A double underscore separates nesting
	// levels so folder paths stay addressable.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
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
			// The CLI uses --state for brevity; the config key is state_path.
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

	// Resolve folder and state paths relative to the config file's
	// directory so a config file works from anywhere.
	base := ""
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			base = filepath.Dir(abs)
		}
	}
	cfg.Folders.NewReleases = resolvePathRelativeTo(cfg.Folders.NewReleases, base)
	cfg.Folders.Templates = resolvePathRelativeTo(cfg.Folders.Templates, base)
	cfg.Folders.FinalPriceSheets = resolvePathRelativeTo(cfg.Folders.FinalPriceSheets, base)
	cfg.Folders.Quarantine = resolvePathRelativeTo(cfg.Folders.Quarantine, base)
	cfg.TabsDir = resolvePathRelativeTo(cfg.TabsDir, base)
	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, base)

	return &cfg, nil
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not
// absolute. Returns the path unchanged if it's empty, already absolute,
// or there is no base.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

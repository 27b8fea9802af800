// Package config loads engine configuration from defaults, a YAML file,
// PRICESHEET_-prefixed environment variables, and CLI flags, in that
// order of precedence (lowest to highest).
package config

import (
	"time"

	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/faults"
)

// FoldersConfig binds the document-store folder labels to paths.
type FoldersConfig struct {
	NewReleases      string `koanf:"new_releases"`
	Templates        string `koanf:"templates"`
	FinalPriceSheets string `koanf:"final_price_sheets"`
	// Quarantine receives release files the engine refuses to process.
	Quarantine string `koanf:"quarantine"`
}

// Config is the full runtime configuration.
type Config struct {
	Folders FoldersConfig `koanf:"folders"`

	// TabsDir holds control.csv and mapping.csv.
	TabsDir string `koanf:"tabs_dir"`
	// StatePath is the SQLite state database path.
	StatePath string `koanf:"state_path"`

	PollInterval  time.Duration `koanf:"poll_interval"`
	LockStaleness time.Duration `koanf:"lock_staleness"`
	RetryAttempts int           `koanf:"retry_attempts"`

	Verbose bool `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultStateFile     = ".pricesheet/state.db"
	DefaultTabsDir       = "tabs"
	DefaultQuarantine    = "quarantine"
	DefaultPollInterval  = 5 * time.Minute
	DefaultLockStaleness = 30 * time.Minute
	DefaultRetryAttempts = 3
)

// FolderPaths returns the label-to-path map the document store expects.
func (c *Config) FolderPaths() map[string]string {
	return map[string]string{
		drive.FolderInbox:      c.Folders.NewReleases,
		drive.FolderTemplates:  c.Folders.Templates,
		drive.FolderOutput:     c.Folders.FinalPriceSheets,
		drive.FolderQuarantine: c.Folders.Quarantine,
	}
}

// Validate checks the configuration is complete enough to run.
func (c *Config) Validate() error {
	if c.Folders.NewReleases == "" || c.Folders.Templates == "" || c.Folders.FinalPriceSheets == "" {
		return faults.New(faults.ClassConfig,
			"all three folders must be configured: new_releases, templates, final_price_sheets")
	}
	if c.TabsDir == "" {
		return faults.New(faults.ClassConfig, "tabs_dir must be configured")
	}
	if c.StatePath == "" {
		return faults.New(faults.ClassConfig, "state_path must be configured")
	}
	return nil
}

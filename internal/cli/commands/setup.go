package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/brickline-labs/pricesheet/internal/config"
	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/engine"
	"github.com/brickline-labs/pricesheet/internal/match"
	"github.com/brickline-labs/pricesheet/internal/sheet"
	"github.com/brickline-labs/pricesheet/internal/state"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// WithConfig stores the config in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetConfig retrieves the config from the context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		TabsDir:       config.DefaultTabsDir,
		StatePath:     config.DefaultStateFile,
		PollInterval:  config.DefaultPollInterval,
		LockStaleness: config.DefaultLockStaleness,
		RetryAttempts: config.DefaultRetryAttempts,
	}
}

// GetLogger retrieves the logger from the context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Store  drive.Store
	Tabs   sheet.TabularSource
	States *state.Store
}

// NewCommandContext wires the collaborators for a command. Returns the
// context and a cleanup function that must be called (typically via
// defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := GetConfig(cmd.Context())
	logger := GetLogger(cmd.Context())

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	store, err := drive.NewFS(cfg.FolderPaths())
	if err != nil {
		return nil, nil, err
	}

	// Ensure the state directory exists
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, nil, err
		}
	}
	states := state.New(logger)
	if err := states.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = states.Close()
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: logger,
		Store:  store,
		Tabs:   sheet.NewCSVSource(cfg.TabsDir),
		States: states,
	}, cleanup, nil
}

// Engine builds an engine over the command context's collaborators.
func (c *CommandContext) Engine(opts engine.Options) *engine.Engine {
	if opts.LockStaleness == 0 {
		opts.LockStaleness = c.Cfg.LockStaleness
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = c.Cfg.PollInterval
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = c.Cfg.RetryAttempts
	}
	return engine.New(c.Store, c.Tabs, c.States, opts, c.Logger)
}

// filterFlags registers the shared --community/--homesite/--floorplan
// flags on a command.
func filterFlags(cmd *cobra.Command) {
	cmd.Flags().String("community", "", "Only process releases for this community")
	cmd.Flags().String("homesite", "", "Only process releases for this homesite")
	cmd.Flags().String("floorplan", "", "Only process releases for this floorplan")
}

// filtersFromFlags reads the shared filter flags.
func filtersFromFlags(cmd *cobra.Command) match.Filters {
	community, _ := cmd.Flags().GetString("community")
	homesite, _ := cmd.Flags().GetString("homesite")
	floorplan, _ := cmd.Flags().GetString("floorplan")
	return match.Filters{Community: community, Homesite: homesite, Floorplan: floorplan}
}

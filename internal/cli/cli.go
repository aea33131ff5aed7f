// Package cli implements the pinaccess command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pinaccess/pkg/cache"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/errors"
	pkgio "github.com/matzehuels/pinaccess/pkg/io"
	"github.com/matzehuels/pinaccess/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pinaccess"

	// redisNamespace prefixes every key written to a shared Redis cache.
	redisNamespace = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Runner Factory
// =============================================================================

// planFlags are the inputs shared by every command that plans a design.
type planFlags struct {
	design   string
	config   string
	threads  int
	noCache  bool
	refresh  bool
	redisURL string
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.design, "design", "d", "", "design file (JSON)")
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "options file (TOML)")
	cmd.Flags().IntVarP(&f.threads, "threads", "j", 0, "worker threads (default: options file or CPU count)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the class result cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached class results (results are still written)")
	cmd.Flags().StringVar(&f.redisURL, "redis-url", os.Getenv("PINACCESS_REDIS_URL"), "share the class cache through Redis (redis://host:port/db)")
	_ = cmd.MarkFlagRequired("design")
}

// options loads the options file, if any, and applies flag overrides.
func (f *planFlags) options() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	if f.config != "" {
		var err error
		if opts, err = pipeline.LoadOptions(f.config); err != nil {
			return opts, err
		}
	}
	if f.threads > 0 {
		opts.Threads = f.threads
	}
	opts.Refresh = f.refresh
	return opts, opts.ValidateAndSetDefaults()
}

// newRunner imports the design and creates a runner backed by the reference
// spacing checker.
func (c *CLI) newRunner(ctx context.Context, f *planFlags) (*pipeline.Runner, error) {
	if err := errors.ValidatePath(f.design); err != nil {
		return nil, err
	}
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	d, err := pkgio.ImportDesign(f.design)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("imported design",
		"design", d.Name,
		"masters", len(d.Masters),
		"instances", len(d.Instances),
		"nets", len(d.Nets),
		"io_terms", len(d.IOTerms))

	cc, err := c.newCache(ctx, f)
	if err != nil {
		return nil, err
	}
	r, err := pipeline.NewRunner(d, drc.NewSpacingChecker(d.Tech), opts, cc, nil, c.Logger)
	if err != nil {
		_ = cc.Close()
		return nil, err
	}
	return r, nil
}

// newCache picks the cache backend. An unreachable Redis server is an error;
// a missing cache directory silently disables caching.
func (c *CLI) newCache(ctx context.Context, f *planFlags) (cache.Cache, error) {
	switch {
	case f.noCache:
		return cache.NewNullCache(), nil
	case f.redisURL != "":
		rc, err := cache.NewRedisCache(ctx, f.redisURL, redisNamespace)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "redis cache")
		}
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "error", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pinaccess/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

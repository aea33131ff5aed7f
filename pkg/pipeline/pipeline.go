// Package pipeline runs pin-access planning on a whole design.
//
// This package wires the access packages into the full flow used by the CLI:
//
//  1. Classify: group instances into unique classes
//  2. Plan: generate access points and instance patterns per class (parallel)
//  3. IO: generate access points for block terminals (parallel)
//  4. Rows: cluster abutting instances into rows (the only barrier)
//  5. Solve: pick one pattern per instance along each row (parallel)
//  6. Fallback: best-effort points for instances outside any row
//  7. Export: ship per-row update batches to a sink (optional)
//
// # Usage
//
//	opts := pipeline.DefaultOptions()
//	runner, err := pipeline.NewRunner(design, drc.NewSpacingChecker(design.Tech), opts, cache, nil, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := runner.Run(ctx, nil)
//
// After Run, ECO re-plans only what a list of placement moves touches:
//
//	report, err := runner.ECO(ctx, moves)
package pipeline

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/gen"
	"github.com/matzehuels/pinaccess/pkg/access/instpat"
	"github.com/matzehuels/pinaccess/pkg/access/rowpat"
	"github.com/matzehuels/pinaccess/pkg/access/unique"
	"github.com/matzehuels/pinaccess/pkg/cache"
	"github.com/matzehuels/pinaccess/pkg/errors"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and library callers
// =============================================================================

const (
	DefaultMinStdCellPoints = gen.DefaultMinStdCellPoints
	DefaultMinMacroPoints   = gen.DefaultMinMacroPoints
	DefaultViaAccessLayer   = gen.DefaultViaAccessLayer
	DefaultMaxViasPerPoint  = gen.DefaultMaxViasPerPoint
	DefaultIterations       = instpat.DefaultIterations

	// DefaultCacheTTL is the lifetime of cached class results.
	DefaultCacheTTL = cache.TTLClass
)

// validate is shared; validator caches struct metadata.
var validate = validator.New()

// =============================================================================
// Options - Planning Configuration
// =============================================================================

// Options configures a planning run. It decodes from TOML; keys missing from
// the file keep the values already in the struct, so LoadOptions starts
// from DefaultOptions.
type Options struct {
	MinStdCellPoints  int  `toml:"min_stdcell_access_points" json:"min_stdcell_access_points" validate:"gte=1"`
	MinMacroPoints    int  `toml:"min_macro_access_points" json:"min_macro_access_points" validate:"gte=1"`
	ViaAccessLayer    int  `toml:"via_access_layer" json:"via_access_layer" validate:"gte=0"`
	MaxViaAccessLayer int  `toml:"max_via_access_layer" json:"max_via_access_layer" validate:"gte=0"`
	Iterations        int  `toml:"pattern_iterations" json:"pattern_iterations" validate:"gte=1,lte=1000"`
	Epsilon           int  `toml:"abutment_epsilon" json:"abutment_epsilon" validate:"gte=0"`
	GuideMode         int  `toml:"guide_penalty_mode" json:"guide_penalty_mode" validate:"gte=0,lte=4"`
	NDRAutoTaper      bool `toml:"ndr_auto_taper" json:"ndr_auto_taper"`
	Threads           int  `toml:"threads" json:"threads" validate:"gte=1,lte=1024"`
	CheckWindow       int  `toml:"check_window" json:"check_window" validate:"gte=0"`
	MaxViasPerPoint   int  `toml:"max_vias_per_point" json:"max_vias_per_point" validate:"gte=0"`

	CacheTTL time.Duration `toml:"cache_ttl" json:"cache_ttl" validate:"gte=0"`
	// Refresh ignores cached class results (they are still written).
	Refresh bool `toml:"-" json:"-"`

	// validated tracks whether SetDefaults and Validate have succeeded.
	validated bool
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MinStdCellPoints: DefaultMinStdCellPoints,
		MinMacroPoints:   DefaultMinMacroPoints,
		ViaAccessLayer:   DefaultViaAccessLayer,
		Iterations:       DefaultIterations,
		Threads:          runtime.NumCPU(),
		MaxViasPerPoint:  DefaultMaxViasPerPoint,
		CacheTTL:         DefaultCacheTTL,
	}
}

// LoadOptions reads a TOML options file on top of DefaultOptions. Unknown
// keys are rejected.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	md, err := toml.DecodeFile(path, &opts)
	if err != nil {
		return opts, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return opts, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return opts, opts.ValidateAndSetDefaults()
}

// SetDefaults fills the fields whose zero value is not meaningful. Fields
// where zero is a valid setting (ViaAccessLayer, Epsilon, GuideMode) are
// left alone.
func (o *Options) SetDefaults() {
	if o.MinStdCellPoints == 0 {
		o.MinStdCellPoints = DefaultMinStdCellPoints
	}
	if o.MinMacroPoints == 0 {
		o.MinMacroPoints = DefaultMinMacroPoints
	}
	if o.Iterations == 0 {
		o.Iterations = DefaultIterations
	}
	if o.Threads == 0 {
		o.Threads = runtime.NumCPU()
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = DefaultCacheTTL
	}
}

// Validate checks option ranges.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid options")
	}
	return nil
}

// ValidateAndSetDefaults applies defaults and validates. This method is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// GenOptions returns the access point generator configuration.
func (o *Options) GenOptions() gen.Options {
	return gen.Options{
		MinStdCellPoints:  o.MinStdCellPoints,
		MinMacroPoints:    o.MinMacroPoints,
		ViaAccessLayer:    o.ViaAccessLayer,
		MaxViaAccessLayer: o.MaxViaAccessLayer,
		CheckWindow:       o.CheckWindow,
		MaxViasPerPoint:   o.MaxViasPerPoint,
	}
}

// ClassKeyOpts returns the cache key options; every option that changes a
// class result is part of it.
func (o *Options) ClassKeyOpts() cache.ClassKeyOpts {
	return cache.ClassKeyOpts{
		MinStdCellPoints:  o.MinStdCellPoints,
		MinMacroPoints:    o.MinMacroPoints,
		ViaAccessLayer:    o.ViaAccessLayer,
		MaxViaAccessLayer: o.MaxViaAccessLayer,
		MaxViasPerPoint:   o.MaxViasPerPoint,
		CheckWindow:       o.CheckWindow,
		Iterations:        o.Iterations,
		NDRAutoTaper:      o.NDRAutoTaper,
	}
}

// Guide returns the row solver's guide penalty mode.
func (o *Options) Guide() rowpat.GuideMode {
	return rowpat.GuideMode(o.GuideMode)
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a planning run.
type Result struct {
	RunID string

	// Assignments holds every resolved instance pin followed by the block
	// terminals.
	Assignments []access.Resolved

	// Classes are the unique classes after planning.
	Classes []*unique.Class

	// Rows are the row clusters that were solved.
	Rows []rowpat.Row

	// FailedBatches lists the IDs of batches the sink rejected.
	FailedBatches []string

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains run statistics. Worker counters are merged once after each
// parallel stage.
type Stats struct {
	Instances int
	Classes   int
	Skipped   int
	IOTerms   int
	Rows      int
	Fallback  int

	Gen  gen.Stats
	Inst instpat.Stats
	Row  rowpat.Stats

	ClassifyTime time.Duration
	PlanTime     time.Duration
	IOTime       time.Duration
	RowTime      time.Duration
	ExportTime   time.Duration
}

// CacheInfo counts class and IO cache lookups.
type CacheInfo struct {
	ClassHits   int
	ClassMisses int
	IOHits      int
	IOMisses    int
}

func (c *CacheInfo) merge(o CacheInfo) {
	c.ClassHits += o.ClassHits
	c.ClassMisses += o.ClassMisses
	c.IOHits += o.IOHits
	c.IOMisses += o.IOMisses
}

func (c CacheInfo) String() string {
	return fmt.Sprintf("class %d/%d, io %d/%d", c.ClassHits, c.ClassHits+c.ClassMisses, c.IOHits, c.IOHits+c.IOMisses)
}

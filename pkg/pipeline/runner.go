package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/gen"
	"github.com/matzehuels/pinaccess/pkg/access/incr"
	"github.com/matzehuels/pinaccess/pkg/access/instpat"
	"github.com/matzehuels/pinaccess/pkg/access/rowpat"
	"github.com/matzehuels/pinaccess/pkg/access/unique"
	"github.com/matzehuels/pinaccess/pkg/batch"
	"github.com/matzehuels/pinaccess/pkg/cache"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/observability"
)

// Runner owns the planning state of one design: the access store, the class
// partition and the assignment table. Run plans from scratch; ECO updates
// the state after placement changes.
//
// Stages that run on the worker pool only write disjoint state (one class,
// one row, one IO terminal per task). A Runner itself must not be used from
// several goroutines at once.
type Runner struct {
	Design  *db.Design
	Oracle  drc.Oracle
	Cache   cache.Cache
	Keyer   cache.Keyer
	Logger  *log.Logger
	Options Options

	Store   *access.Store
	Classes *unique.Classifier
	Table   *access.Table

	gen  *gen.Generator
	inst *instpat.Solver
	row  *rowpat.Solver

	techHash   string
	masterKeys []string
	manager    *incr.Manager

	// stats and info accumulate over every stage until the next Run.
	stats Stats
	info  CacheInfo
}

// NewRunner validates d and opts and prepares an empty planning state.
// If keyer is nil, a DefaultKeyer is used. If c is nil, a NullCache is used
// (caching disabled).
func NewRunner(d *db.Design, oracle drc.Oracle, opts Options, c cache.Cache, keyer cache.Keyer, logger *log.Logger) (*Runner, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDesign, err, "design %s", d.Name)
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	d.Index()

	store := access.NewStore()
	r := &Runner{
		Design:  d,
		Oracle:  oracle,
		Cache:   c,
		Keyer:   keyer,
		Logger:  logger,
		Options: opts,
		Store:   store,
		Classes: unique.New(d, store, unique.Options{NDRAutoTaper: opts.NDRAutoTaper, Logger: logger}),
		Table:   access.NewTable(len(d.Instances)),
		gen:     gen.New(d, oracle, opts.GenOptions()),
		inst:    instpat.New(d, oracle, instpat.Options{Iterations: opts.Iterations, CheckWindow: opts.CheckWindow, Logger: logger}),
	}
	r.row = rowpat.New(d, oracle, r.Classes, rowpat.Options{Epsilon: opts.Epsilon, Guide: opts.Guide(), CheckWindow: opts.CheckWindow, Logger: logger})
	r.hashDesign()
	return r, nil
}

// hashDesign computes the content hashes used in cache keys.
func (r *Runner) hashDesign() {
	tech, _ := json.Marshal(struct {
		Tech   *db.Tech
		Tracks []db.TrackPattern
	}{r.Design.Tech, r.Design.Tracks})
	r.techHash = cache.Hash(tech)

	r.masterKeys = make([]string, len(r.Design.Masters))
	for i := range r.Design.Masters {
		m, _ := json.Marshal(&r.Design.Masters[i])
		r.masterKeys[i] = r.Design.Masters[i].Name + ":" + cache.Hash(m)
	}
}

// Run plans the whole design. When sink is non-nil the committed points are
// exported in per-row batches; batch failures are reported in the result,
// not as an error.
func (r *Runner) Run(ctx context.Context, sink batch.Sink) (*Result, error) {
	r.stats, r.info = Stats{}, CacheInfo{}
	runID := batch.NewRunID()
	logger := r.Logger.With("run", runID[:8])

	// Stage 1: Classify
	start := time.Now()
	skipped, err := r.Classes.Classify()
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	r.stats.ClassifyTime = time.Since(start)
	r.stats.Skipped = skipped
	logger.Info("classified instances",
		"instances", len(r.Design.Live()),
		"classes", len(r.Classes.Classes()),
		"skipped", skipped,
		"duration", r.stats.ClassifyTime)

	// Stage 2: Plan classes
	start = time.Now()
	if err := r.PlanClasses(ctx, r.Classes.DirtyClasses()); err != nil {
		return nil, fmt.Errorf("plan classes: %w", err)
	}
	r.stats.PlanTime = time.Since(start)
	logger.Info("planned classes",
		"points", r.stats.Gen.Points,
		"patterns", r.stats.Inst.Patterns,
		"no_pattern", r.stats.Inst.SoftFailures,
		"cache", r.info.String(),
		"duration", r.stats.PlanTime)

	// Stage 3: Block terminals
	start = time.Now()
	if err := r.PlanIO(ctx); err != nil {
		return nil, fmt.Errorf("plan io: %w", err)
	}
	r.stats.IOTime = time.Since(start)

	// Stage 4: Rows. Building rows reads every class's patterns, so it waits
	// for all planning to finish.
	start = time.Now()
	rows := rowpat.BuildRows(r.Design, r.Classes, r.Options.Epsilon)
	if err := r.SolveRows(ctx, rows); err != nil {
		return nil, fmt.Errorf("solve rows: %w", err)
	}

	// Stage 5: Instances outside every row
	inRow := make(map[db.InstID]bool)
	for _, row := range rows {
		for _, inst := range row.Insts {
			inRow[inst] = true
		}
	}
	var rest []db.InstID
	for _, inst := range r.Design.Live() {
		if !inRow[inst] {
			rest = append(rest, inst)
		}
	}
	if err := r.Fallback(ctx, rest); err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	r.stats.RowTime = time.Since(start)
	logger.Info("solved rows",
		"rows", len(rows),
		"dirty_edges", r.stats.Row.DirtyEdges,
		"fallback", r.stats.Fallback,
		"duration", r.stats.RowTime)

	r.manager = incr.New(r.Design, r.Classes, r.Table, r, incr.Options{Epsilon: r.Options.Epsilon, Logger: logger})

	result := &Result{
		RunID:       runID,
		Assignments: r.Assignments(),
		Classes:     r.Classes.Classes(),
		Rows:        rows,
	}

	// Stage 6: Export
	if sink != nil {
		start = time.Now()
		failed, err := batch.Export(ctx, sink, batch.Group(runID, rows, r.Table), logger)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		result.FailedBatches = failed
		r.stats.ExportTime = time.Since(start)
	}

	r.stats.Instances = len(r.Design.Live())
	r.stats.Classes = len(result.Classes)
	result.Stats = r.stats
	result.CacheInfo = r.info
	return result, nil
}

// ECO applies placement moves and re-plans what they touch. Run must have
// completed first.
func (r *Runner) ECO(ctx context.Context, moves []incr.Move) (incr.Report, error) {
	if r.manager == nil {
		return incr.Report{}, errors.New(errors.ErrCodeInternal, "eco before initial run")
	}
	dirty, err := r.manager.Apply(moves)
	if err != nil {
		return incr.Report{}, err
	}
	return r.manager.Update(ctx, dirty)
}

// Assignments returns every resolved pin followed by the block terminals.
func (r *Runner) Assignments() []access.Resolved {
	return append(r.Table.All(), r.Table.IO()...)
}

// Stats returns the counters accumulated since the last Run.
func (r *Runner) Stats() (Stats, CacheInfo) {
	return r.stats, r.info
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

var _ incr.Planner = (*Runner)(nil)

// =============================================================================
// Class planning
// =============================================================================

// classEntry is the cached form of a planned class. Points are relative to
// the instance origin, so one entry serves every member.
type classEntry struct {
	Order    []access.PinRef  `json:"order"`
	Pins     []pinEntry       `json:"pins"`
	Patterns []access.Pattern `json:"patterns"`
}

type pinEntry struct {
	Ref    access.PinRef     `json:"ref"`
	Access *access.PinAccess `json:"access"`
}

func newClassEntry(order []access.PinRef, pins access.PinSet, pats []access.Pattern) classEntry {
	e := classEntry{Order: order, Patterns: pats}
	for _, ref := range pins.Refs() {
		e.Pins = append(e.Pins, pinEntry{Ref: ref, Access: pins[ref]})
	}
	return e
}

func (e classEntry) pinSet() access.PinSet {
	ps := make(access.PinSet, len(e.Pins))
	for _, p := range e.Pins {
		ps[p.Ref] = p.Access
	}
	return ps
}

// PlanClasses generates access points and patterns on the representative of
// each class, in parallel, and shares the result with the members. A class
// without any pattern is only a warning; a pin without any access point
// aborts.
func (r *Runner) PlanClasses(ctx context.Context, classes []*unique.Class) error {
	nw := workers(r.Options.Threads, len(classes))
	gst := make([]gen.Stats, nw)
	ist := make([]instpat.Stats, nw)
	info := make([]CacheInfo, nw)

	err := forEach(ctx, r.Options.Threads, len(classes), func(ctx context.Context, w, i int) error {
		return r.planClass(ctx, classes[i], &gst[w], &ist[w], &info[w])
	})
	for w := 0; w < nw; w++ {
		r.stats.Gen.Merge(gst[w])
		r.stats.Inst.Merge(ist[w])
		r.info.merge(info[w])
	}
	return err
}

func (r *Runner) planClass(ctx context.Context, cls *unique.Class, gst *gen.Stats, ist *instpat.Stats, info *CacheInfo) error {
	key := r.Keyer.ClassKey(r.techHash, r.masterKeys[cls.Master], cls.Key.String(), r.Options.ClassKeyOpts())

	if !r.Options.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var e classEntry
			if err := json.Unmarshal(data, &e); err == nil {
				info.ClassHits++
				observability.Cache().OnCacheHit(ctx, "class")
				r.commitClass(cls, e.Order, e.pinSet(), e.Patterns)
				return nil
			}
		}
	}
	info.ClassMisses++
	observability.Cache().OnCacheMiss(ctx, "class")

	start := time.Now()
	pins, err := r.gen.GenerateInst(ctx, cls.Rep, gst)
	observability.Access().OnGenerate(ctx, "class", pins.Points(), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("class %d (%s): %w", cls.ID, r.Design.Instances[cls.Rep].Name, err)
	}

	start = time.Now()
	sol, err := r.inst.Solve(ctx, instpat.Problem{Inst: cls.Rep, Pins: pins}, ist)
	observability.Access().OnPatterns(ctx, r.Design.Masters[cls.Master].Name, len(sol.Patterns), time.Since(start), err)
	if err != nil && !errors.IsSoft(err) {
		return fmt.Errorf("class %d (%s): %w", cls.ID, r.Design.Instances[cls.Rep].Name, err)
	}
	r.commitClass(cls, sol.Order, pins, sol.Patterns)

	if data, err := json.Marshal(newClassEntry(sol.Order, pins, sol.Patterns)); err == nil {
		if err := r.Cache.Set(ctx, key, data, r.Options.CacheTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "class", len(data))
		} else {
			r.Logger.Debug("cache write failed", "class", cls.ID, "err", err)
		}
	}
	return nil
}

// commitClass stores a planned result on cls and its members.
func (r *Runner) commitClass(cls *unique.Class, order []access.PinRef, pins access.PinSet, pats []access.Pattern) {
	r.Store.Put(cls.Master, cls.PAIdx, pins)
	cls.Order = order
	cls.Patterns = pats
	cls.Dirty = false
	r.Classes.Propagate(cls)
}

// =============================================================================
// Block terminals
// =============================================================================

// PlanIO generates access for the first pin of every block terminal and
// records its cheapest point.
func (r *Runner) PlanIO(ctx context.Context) error {
	var ids []db.IOTermID
	for i := range r.Design.IOTerms {
		if len(r.Design.IOTerms[i].Pins) > 0 {
			ids = append(ids, db.IOTermID(i))
		}
	}
	nw := workers(r.Options.Threads, len(ids))
	gst := make([]gen.Stats, nw)
	info := make([]CacheInfo, nw)

	err := forEach(ctx, r.Options.Threads, len(ids), func(ctx context.Context, w, i int) error {
		return r.planIO(ctx, ids[i], &gst[w], &info[w])
	})
	for w := 0; w < nw; w++ {
		r.stats.Gen.Merge(gst[w])
		r.info.merge(info[w])
	}
	if err != nil {
		return err
	}

	// SetIO is not safe for concurrent use.
	for _, id := range ids {
		pa, ok := r.Store.IO(id)
		if !ok {
			continue
		}
		if best := pa.Best(); best >= 0 {
			ap := &pa.Points[best]
			r.Table.SetIO(id, access.Resolved{
				Inst:  -1,
				IO:    id,
				Term:  -1,
				Point: ap.Point,
				Layer: ap.Layer,
				Dirs:  ap.Dirs,
				Via:   ap.Via(),
				Cost:  ap.Cost(),
			})
		}
	}
	r.stats.IOTerms = len(ids)
	return nil
}

func (r *Runner) planIO(ctx context.Context, id db.IOTermID, gst *gen.Stats, info *CacheInfo) error {
	term := &r.Design.IOTerms[id]
	shapes, _ := json.Marshal(term.Pins)
	key := r.Keyer.IOKey(r.techHash, term.Name+":"+cache.Hash(shapes), 0, r.Options.ClassKeyOpts())

	if !r.Options.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var pa access.PinAccess
			if err := json.Unmarshal(data, &pa); err == nil {
				info.IOHits++
				observability.Cache().OnCacheHit(ctx, "io")
				r.Store.PutIO(id, &pa)
				return nil
			}
		}
	}
	info.IOMisses++
	observability.Cache().OnCacheMiss(ctx, "io")

	start := time.Now()
	pa, err := r.gen.Generate(ctx, gen.IOPin(id, 0), gst)
	n := 0
	if pa != nil {
		n = len(pa.Points)
	}
	observability.Access().OnGenerate(ctx, "io", n, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("io term %s: %w", term.Name, err)
	}
	r.Store.PutIO(id, pa)

	if data, err := json.Marshal(pa); err == nil {
		if err := r.Cache.Set(ctx, key, data, r.Options.CacheTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "io", len(data))
		}
	}
	return nil
}

// =============================================================================
// Rows
// =============================================================================

// SolveRows solves and commits rows in parallel. Rows are disjoint, so each
// task writes its own table entries.
func (r *Runner) SolveRows(ctx context.Context, rows []rowpat.Row) error {
	nw := workers(r.Options.Threads, len(rows))
	rst := make([]rowpat.Stats, nw)

	err := forEach(ctx, r.Options.Threads, len(rows), func(ctx context.Context, w, i int) error {
		start := time.Now()
		err := r.row.SolveAndCommit(ctx, rows[i], r.Table, &rst[w])
		observability.Access().OnRowSolve(ctx, len(rows[i].Insts), time.Since(start), err)
		return err
	})
	for w := 0; w < nw; w++ {
		r.stats.Row.Merge(rst[w])
	}
	r.stats.Rows += len(rows)
	return err
}

// Fallback assigns access to instances outside every row. An instance whose
// class has patterns takes the cheapest one; otherwise every pin gets its
// cheapest access point, marked best effort. Instances without pins are
// left empty.
func (r *Runner) Fallback(ctx context.Context, insts []db.InstID) error {
	for _, inst := range insts {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Table.Clear(inst)
		cls, ok := r.Classes.ClassOf(inst)
		if !ok {
			continue
		}
		pins := r.Store.Get(cls.Master, cls.PAIdx)
		origin := r.Design.Instances[inst].Origin

		if len(cls.Patterns) > 0 {
			best := 0
			for i := range cls.Patterns {
				if cls.Patterns[i].Cost < cls.Patterns[best].Cost {
					best = i
				}
			}
			r.Table.Set(inst, rowpat.Resolve(inst, origin, cls.Order, &cls.Patterns[best], pins))
			r.stats.Fallback++
			continue
		}

		var rs []access.Resolved
		for _, ref := range pins.Refs() {
			pa := pins[ref]
			if best := pa.Best(); best >= 0 {
				res := access.Place(inst, ref, origin, &pa.Points[best])
				res.BestEffort = true
				rs = append(rs, res)
			}
		}
		r.Table.Set(inst, rs)
		r.stats.Fallback++
	}
	return nil
}

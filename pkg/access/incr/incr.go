// Package incr re-plans pin access after placement changes.
//
// An update takes the set of dirty instances (moved, reoriented, added or
// removed) plus every instance whose terminal connectivity changed, re-keys each one and moves it between classes as needed. Classes
// that end up dirty are re-planned on their representative only and the
// result is shared with every member. Finally the row clusters around each
// affected instance are found by walking the position-sorted instances
// outward within the abutment tolerance, and only those rows are re-solved.
package incr

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/rowpat"
	"github.com/matzehuels/pinaccess/pkg/access/unique"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// Planner runs the expensive stages on behalf of the manager.
type Planner interface {
	// PlanClasses generates access points and instance patterns on the
	// representative of every class, clears Dirty and propagates the
	// pin-access index to the members.
	PlanClasses(ctx context.Context, classes []*unique.Class) error
	// SolveRows solves and commits the given rows.
	SolveRows(ctx context.Context, rows []rowpat.Row) error
	// Fallback assigns best-effort access to instances outside any row.
	Fallback(ctx context.Context, insts []db.InstID) error
}

// Move is one placement change.
type Move struct {
	Inst   db.InstID   `json:"inst"`
	Origin geom.Point  `json:"origin"`
	Orient geom.Orient `json:"orient"`
	Remove bool        `json:"remove,omitempty"`
}

// Report summarizes one update.
type Report struct {
	Dirty        int `json:"dirty"`
	Rewired      int `json:"rewired"`
	Reclassified int `json:"reclassified"`
	NewClasses   int `json:"new_classes"`
	Destroyed    int `json:"destroyed"`
	Promoted     int `json:"promoted"`
	Replanned    int `json:"replanned"`
	Rows         int `json:"rows"`
	RowInsts     int `json:"row_insts"`
	Fallback     int `json:"fallback"`
}

// Options configures the manager.
type Options struct {
	// Epsilon is the abutment tolerance used to find row clusters.
	Epsilon int
	Logger  *log.Logger
}

// Manager owns the incremental state between updates.
type Manager struct {
	d       *db.Design
	cls     *unique.Classifier
	table   *access.Table
	planner Planner
	opts    Options
	logger  *log.Logger
	nInst   int

	// conn is the terminal connectivity of every instance as of the last
	// update.
	conn []connectivity

	// neighbours holds the row neighbours of every instance as of the last
	// update, so the rows an instance leaves are re-solved too.
	neighbours map[db.InstID][]db.InstID
}

// New returns a manager over an already planned design.
func New(d *db.Design, cls *unique.Classifier, table *access.Table, planner Planner, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	m := &Manager{d: d, cls: cls, table: table, planner: planner, opts: opts, logger: logger, nInst: len(d.Instances)}
	m.snapshot()
	return m
}

// connectivity is what an instance's class and row costs read from the
// netlist.
type connectivity struct {
	nets []db.NetID
	ndr  bool
}

func (c connectivity) equal(o connectivity) bool {
	return c.ndr == o.ndr && slices.Equal(c.nets, o.nets)
}

// Apply writes moves into the design and returns the touched instances.
func (m *Manager) Apply(moves []Move) ([]db.InstID, error) {
	dirty := make([]db.InstID, 0, len(moves))
	for _, mv := range moves {
		if mv.Inst < 0 || int(mv.Inst) >= len(m.d.Instances) {
			return nil, errors.New(errors.ErrCodeNotFound, "instance %d", mv.Inst)
		}
		in := &m.d.Instances[mv.Inst]
		if mv.Remove {
			in.Removed = true
		} else {
			in.Origin, in.Orient = mv.Origin, mv.Orient
		}
		dirty = append(dirty, mv.Inst)
	}
	return dirty, nil
}

// Update re-plans after the instances in dirty changed. Instances appended
// to the design since the last update must be listed too.
func (m *Manager) Update(ctx context.Context, dirty []db.InstID) (Report, error) {
	var rep Report
	m.d.Index()
	if n := len(m.d.Instances); n != m.nInst {
		m.table.Grow(n)
		m.nInst = n
	}
	rewired := m.rewired()
	rep.Rewired = len(rewired)
	dirty = append(slices.Clone(dirty), rewired...)
	slices.Sort(dirty)
	dirty = slices.Compact(dirty)
	rep.Dirty = len(dirty)

	affected := make(map[db.InstID]bool)
	for _, inst := range dirty {
		if err := m.reclassify(inst, &rep); err != nil {
			return rep, err
		}
		if !m.d.Instances[inst].Removed {
			affected[inst] = true
		}
		for _, nb := range m.neighbours[inst] {
			if !m.d.Instances[nb].Removed {
				affected[nb] = true
			}
		}
	}

	replan := m.cls.DirtyClasses()
	if len(replan) > 0 {
		if err := m.planner.PlanClasses(ctx, replan); err != nil {
			return rep, err
		}
		rep.Replanned = len(replan)
		for _, cls := range replan {
			for _, mem := range cls.Members {
				affected[mem] = true
			}
		}
	}

	rows, inRow := m.clusters(affected)
	rep.Rows = len(rows)
	for _, r := range rows {
		rep.RowInsts += len(r.Insts)
	}
	if len(rows) > 0 {
		if err := m.planner.SolveRows(ctx, rows); err != nil {
			return rep, err
		}
	}

	var rest []db.InstID
	for inst := range affected {
		if !inRow[inst] {
			rest = append(rest, inst)
		}
	}
	slices.Sort(rest)
	if len(rest) > 0 {
		if err := m.planner.Fallback(ctx, rest); err != nil {
			return rep, err
		}
	}
	rep.Fallback = len(rest)

	m.snapshot()
	m.logger.Info("incremental update", "dirty", rep.Dirty, "rewired", rep.Rewired, "reclassified", rep.Reclassified, "replanned", rep.Replanned, "rows", rep.Rows, "fallback", rep.Fallback)
	return rep, nil
}

// reclassify moves inst to the class of its current key.
func (m *Manager) reclassify(inst db.InstID, rep *Report) error {
	m.table.Clear(inst)
	old, had := m.cls.ClassOf(inst)
	if m.d.Instances[inst].Removed {
		if had {
			m.detach(inst, old, rep)
		}
		return nil
	}
	key, err := m.cls.Key(inst)
	switch {
	case err == nil && had && key.String() == old.Key.String():
		return nil
	case err != nil && !errors.IsSoft(err):
		return err
	}
	if had {
		m.detach(inst, old, rep)
	}
	isNew, err := m.cls.Add(inst)
	if err != nil {
		if errors.IsSoft(err) {
			return nil
		}
		return err
	}
	rep.Reclassified++
	if isNew {
		rep.NewClasses++
	}
	return nil
}

func (m *Manager) detach(inst db.InstID, old *unique.Class, rep *Report) {
	wasRep := old.Rep == inst
	if _, ok := m.cls.Delete(inst); !ok {
		rep.Destroyed++
		return
	}
	if wasRep {
		rep.Promoted++
	}
}

// clusters returns the rows around the affected instances, each exactly
// once, plus the set of instances they cover.
func (m *Manager) clusters(affected map[db.InstID]bool) ([]rowpat.Row, map[db.InstID]bool) {
	sorted := rowpat.Sorted(m.d, m.cls)
	pos := make(map[db.InstID]int, len(sorted))
	for i, inst := range sorted {
		pos[inst] = i
	}
	var starts []int
	ends := make(map[int]int)
	for inst := range affected {
		i, ok := pos[inst]
		if !ok {
			continue
		}
		lo, hi := rowpat.Around(m.d, sorted, i, m.opts.Epsilon)
		if _, dup := ends[lo]; !dup {
			starts = append(starts, lo)
			ends[lo] = hi
		}
	}
	slices.Sort(starts)
	rows := make([]rowpat.Row, 0, len(starts))
	inRow := make(map[db.InstID]bool)
	for _, lo := range starts {
		r := rowpat.Row{ID: len(rows), Insts: slices.Clone(sorted[lo:ends[lo]])}
		for _, inst := range r.Insts {
			inRow[inst] = true
		}
		rows = append(rows, r)
	}
	return rows, inRow
}

// rewired returns the live instances known at the last update whose
// terminal nets or NDR status changed since. The net index must be current.
func (m *Manager) rewired() []db.InstID {
	var out []db.InstID
	for i := range m.conn {
		inst := db.InstID(i)
		if m.d.Instances[inst].Removed {
			continue
		}
		if !m.connOf(inst).equal(m.conn[i]) {
			out = append(out, inst)
		}
	}
	return out
}

func (m *Manager) connOf(inst db.InstID) connectivity {
	return connectivity{nets: m.d.TermNets(inst), ndr: m.d.HasNDR(inst)}
}

// snapshot records the current row neighbours and terminal connectivity of
// every instance.
func (m *Manager) snapshot() {
	m.conn = make([]connectivity, len(m.d.Instances))
	for i := range m.d.Instances {
		m.conn[i] = m.connOf(db.InstID(i))
	}
	sorted := rowpat.Sorted(m.d, m.cls)
	m.neighbours = make(map[db.InstID][]db.InstID, len(sorted))
	for i := 1; i < len(sorted); i++ {
		a, b := sorted[i-1], sorted[i]
		if rowpat.Adjacent(m.d, a, b, m.opts.Epsilon) {
			m.neighbours[a] = append(m.neighbours[a], b)
			m.neighbours[b] = append(m.neighbours[b], a)
		}
	}
}

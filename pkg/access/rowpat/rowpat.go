// Package rowpat chooses one instance pattern per instance along a row.
//
// The search graph has one layer per row member and one node per pattern of
// that member's class. A node costs its pattern cost plus an optional route
// guide penalty. The edge between neighbours only looks at the boundary
// points that face each other: the previous instance's rightmost point and
// the next instance's leftmost one. A clean pair costs the average of the two
// node costs; a dirty pair costs ViolationCost. With a non-zero abutment
// tolerance, boundary points of instances that do not touch are further
// penalised when they sit on the same or an adjacent track.
//
// Every pairwise edge is finite, so a row whose members all have patterns
// always has a path.
package rowpat

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/gen"
	"github.com/matzehuels/pinaccess/pkg/access/instpat"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// ViolationCost is the cost of an edge whose boundary points conflict or
// share a track across a gap.
const ViolationCost = 1000

// Patterns exposes the instance patterns of each instance.
type Patterns interface {
	// PatternsOf returns the pin order, patterns and pin access points of
	// inst. ok is false when inst has no usable pattern.
	PatternsOf(inst db.InstID) (order []access.PinRef, pats []access.Pattern, pins access.PinSet, ok bool)
}

// Options configures the solver.
type Options struct {
	// Epsilon is the abutment tolerance in DBU.
	Epsilon     int
	Guide       GuideMode
	CheckWindow int
	Logger      *log.Logger
}

// Stats accumulates solver counters per worker.
type Stats struct {
	Rows        int
	Instances   int
	OracleCalls int
	DirtyEdges  int
	TrackEdges  int
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Rows += o.Rows
	s.Instances += o.Instances
	s.OracleCalls += o.OracleCalls
	s.DirtyEdges += o.DirtyEdges
	s.TrackEdges += o.TrackEdges
}

// Solver solves rows. It is safe for concurrent use on disjoint rows when
// the oracle is.
type Solver struct {
	d      *db.Design
	oracle drc.Oracle
	src    Patterns
	opts   Options
	logger *log.Logger
}

// New returns a solver reading patterns from src.
func New(d *db.Design, oracle drc.Oracle, src Patterns, opts Options) *Solver {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Solver{d: d, oracle: oracle, src: src, opts: opts, logger: logger}
}

// node is one pattern of one row member.
type node struct {
	inst  db.InstID
	order []access.PinRef
	pins  access.PinSet
	pat   *access.Pattern
	cost  int
}

// nodes returns the pattern nodes of inst.
func (s *Solver) nodes(inst db.InstID) ([]node, error) {
	order, pats, pins, ok := s.src.PatternsOf(inst)
	if !ok || len(pats) == 0 {
		return nil, errors.New(errors.ErrCodeNoRowPath, "instance %s has no access pattern", s.d.Instances[inst].Name)
	}
	out := make([]node, len(pats))
	for i := range pats {
		out[i] = node{inst: inst, order: order, pins: pins, pat: &pats[i]}
		out[i].cost = pats[i].Cost + s.guidePenalty(inst, &out[i])
	}
	return out, nil
}

// Solve returns the chosen pattern index of every row member. A member
// without patterns leaves the row without a path, which is fatal.
func (s *Solver) Solve(ctx context.Context, row Row, st *Stats) ([]int, error) {
	if st == nil {
		st = &Stats{}
	}
	st.Rows++
	st.Instances += len(row.Insts)
	if len(row.Insts) == 0 {
		return nil, nil
	}

	layers := make([][]node, len(row.Insts))
	for i, inst := range row.Insts {
		ns, err := s.nodes(inst)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.ID, err)
		}
		layers[i] = ns
	}

	dist := make([][]int, len(layers))
	prev := make([][]int, len(layers))
	for i := range layers {
		dist[i] = make([]int, len(layers[i]))
		prev[i] = slices.Repeat([]int{-1}, len(layers[i]))
	}
	for j := range layers[0] {
		dist[0][j] = layers[0][j].cost
	}
	for i := 1; i < len(layers); i++ {
		for j := range layers[i] {
			for k := range layers[i-1] {
				e, err := s.edge(ctx, &layers[i-1][k], &layers[i][j], st)
				if err != nil {
					return nil, err
				}
				if c := dist[i-1][k] + e; prev[i][j] < 0 || c < dist[i][j] {
					dist[i][j], prev[i][j] = c, k
				}
			}
		}
	}

	last := len(layers) - 1
	end := 0
	for j := range dist[last] {
		if dist[last][j] < dist[last][end] {
			end = j
		}
	}
	choice := make([]int, len(layers))
	for i, j := last, end; i >= 0; i-- {
		choice[i] = j
		j = prev[i][j]
	}
	s.logger.Debug("solved row", "row", row.ID, "insts", len(row.Insts), "cost", dist[last][end])
	return choice, nil
}

// EdgeCost returns the cost of placing pattern pb of b right after pattern
// pa of a.
func (s *Solver) EdgeCost(ctx context.Context, a db.InstID, pa int, b db.InstID, pb int) (int, error) {
	na, err := s.nodes(a)
	if err != nil {
		return 0, err
	}
	nb, err := s.nodes(b)
	if err != nil {
		return 0, err
	}
	if pa < 0 || pa >= len(na) || pb < 0 || pb >= len(nb) {
		return 0, errors.New(errors.ErrCodeNotFound, "pattern index out of range")
	}
	return s.edge(ctx, &na[pa], &nb[pb], &Stats{})
}

func (s *Solver) edge(ctx context.Context, a, b *node, st *Stats) (int, error) {
	cost := (a.cost + b.cost) / 2
	ra, okA := boundary(a, a.pat.Right)
	lb, okB := boundary(b, b.pat.Left)
	if !okA || !okB {
		return cost, nil
	}
	clean, err := s.clean(ctx, a, ra, b, lb, st)
	if err != nil {
		return 0, err
	}
	if !clean {
		st.DirtyEdges++
		return ViolationCost, nil
	}
	if s.opts.Epsilon <= 0 {
		return cost, nil
	}
	if dx, _ := geom.Gap(s.d.Box(a.inst), s.d.Box(b.inst)); dx == 0 {
		return cost, nil
	}
	switch dt := s.trackDist(a, ra, b, lb); {
	case dt == 0:
		st.TrackEdges++
		return ViolationCost, nil
	case dt > 0:
		return 2 * cost, nil
	}
	return cost, nil
}

// boundaryPoint is a chosen boundary access point with its pin.
type boundaryPoint struct {
	ref access.PinRef
	ap  *access.AccessPoint
}

func boundary(n *node, pos int) (boundaryPoint, bool) {
	if pos < 0 || n.pat.Choice[pos] < 0 {
		return boundaryPoint{}, false
	}
	ref := n.order[pos]
	return boundaryPoint{ref: ref, ap: &n.pins[ref].Points[n.pat.Choice[pos]]}, true
}

// trackDist compares the track coordinates of two boundary points on the
// same layer: 0 on the same track, 1 on adjacent tracks, -1 otherwise.
func (s *Solver) trackDist(a *node, pa boundaryPoint, b *node, pb boundaryPoint) int {
	if pa.ap.Layer != pb.ap.Layer {
		return -1
	}
	lay := &s.d.Tech.Layers[pa.ap.Layer]
	p := pa.ap.Point.Add(s.d.Instances[a.inst].Origin)
	q := pb.ap.Point.Add(s.d.Instances[b.inst].Origin)
	delta := p.X - q.X
	if lay.IsHorizontal() {
		delta = p.Y - q.Y
	}
	delta = max(delta, -delta)
	switch {
	case delta == 0:
		return 0
	case delta <= lay.Pitch:
		return 1
	}
	return -1
}

func (s *Solver) clean(ctx context.Context, a *node, pa boundaryPoint, b *node, pb boundaryPoint, st *Stats) (bool, error) {
	ta, tb := &s.d.Instances[a.inst], &s.d.Instances[b.inst]
	figs := instpat.Figures(s.d.Tech, a.inst, pa.ref.Term, ta.Origin, pa.ap)
	figs = append(figs, instpat.Figures(s.d.Tech, b.inst, pb.ref.Term, tb.Origin, pb.ap)...)
	margin := s.opts.CheckWindow
	if margin <= 0 {
		margin = 2 * s.d.Tech.Layers[pa.ap.Layer].Pitch
	}
	window := figs[0].Rect
	for _, f := range figs[1:] {
		window = window.Union(f.Rect)
	}
	targets := append(gen.InstFigures(s.d, a.inst), gen.InstFigures(s.d, b.inst)...)
	st.OracleCalls++
	res, err := s.oracle.Check(ctx, drc.Request{Targets: targets, Figures: figs, Window: window.Bloat(margin)})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.Wrap(errors.ErrCodeOracle, err, "instances %s and %s: boundary check", ta.Name, tb.Name)
	}
	return res.Clean(), nil
}

// Commit resolves the chosen patterns of row into table, one entry per
// accessed pin of every member.
func (s *Solver) Commit(row Row, choice []int, table *access.Table) {
	for i, inst := range row.Insts {
		order, pats, pins, ok := s.src.PatternsOf(inst)
		if !ok || choice[i] < 0 || choice[i] >= len(pats) {
			continue
		}
		table.Set(inst, Resolve(inst, s.d.Instances[inst].Origin, order, &pats[choice[i]], pins))
	}
}

// Resolve places the points pat chooses for inst at origin.
func Resolve(inst db.InstID, origin geom.Point, order []access.PinRef, pat *access.Pattern, pins access.PinSet) []access.Resolved {
	var rs []access.Resolved
	for pos, c := range pat.Choice {
		if c < 0 {
			continue
		}
		ref := order[pos]
		rs = append(rs, access.Place(inst, ref, origin, &pins[ref].Points[c]))
	}
	return rs
}

// SolveAndCommit solves row and commits the result.
func (s *Solver) SolveAndCommit(ctx context.Context, row Row, table *access.Table, st *Stats) error {
	choice, err := s.Solve(ctx, row, st)
	if err != nil {
		return err
	}
	s.Commit(row, choice, table)
	return nil
}

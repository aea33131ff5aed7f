// Package instpat selects access patterns for single instances.
//
// A pattern picks one access point per pin. The search is a shortest path
// over a layered graph: a source, one layer of nodes per pin holding that
// pin's access points, and a sink. The edge into a point costs the average of
// the two endpoint costs, or ViolationCost when the two points (or, looking
// one pin further back, the three points) are not design-rule clean together.
// Points reused as pattern boundaries and points already blamed for a
// violation carry extra penalties, so each iteration is pushed toward a
// different pattern.
//
// Every committed path is re-validated as a whole. A clean path becomes a
// pattern; a dirty one blames the points of the offending terminals and the
// search repeats. When the pins in their natural order yield no new pattern,
// search runs once more with the order reversed.
package instpat

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/gen"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// Search costs.
const (
	ViolationCost         = 1000
	UsedBoundaryPenalty   = 100
	KnownViolationPenalty = 1000
)

// DefaultIterations is the default iteration cap per pin order.
const DefaultIterations = 10

// Options configures the solver.
type Options struct {
	// Iterations caps the search iterations per pin order.
	Iterations int
	// CheckWindow is the margin around checked figures. Zero uses two
	// pitches of the point's layer.
	CheckWindow int
	Logger      *log.Logger
}

// Stats accumulates solver counters per worker.
type Stats struct {
	Instances    int
	Patterns     int
	Iterations   int
	OracleCalls  int
	Reversed     int
	SoftFailures int
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Instances += o.Instances
	s.Patterns += o.Patterns
	s.Iterations += o.Iterations
	s.OracleCalls += o.OracleCalls
	s.Reversed += o.Reversed
	s.SoftFailures += o.SoftFailures
}

// Problem is one instance to solve.
type Problem struct {
	// Inst is the class representative the points were generated on.
	Inst db.InstID
	Pins access.PinSet
	// Order is the pin order existing patterns are indexed by. Nil derives
	// a fresh order from Pins.
	Order []access.PinRef
	// Existing patterns are kept and never reproduced.
	Existing []access.Pattern
}

// Solution is the result of Solve. Patterns holds the existing patterns
// followed by the new ones.
type Solution struct {
	Order    []access.PinRef
	Patterns []access.Pattern
	Found    int
}

// Solver searches instance patterns. It is safe for concurrent use on
// different problems when the oracle is.
type Solver struct {
	d      *db.Design
	oracle drc.Oracle
	opts   Options
	logger *log.Logger
}

// New returns a solver over d.
func New(d *db.Design, oracle drc.Oracle, opts Options) *Solver {
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Solver{d: d, oracle: oracle, opts: opts, logger: logger}
}

// PinOrder sorts the pins that have access points by the average X of their
// points, breaking ties by terminal and pin index.
func PinOrder(pins access.PinSet) []access.PinRef {
	type keyed struct {
		ref access.PinRef
		avg int
	}
	var ks []keyed
	for _, ref := range pins.Refs() {
		pa := pins[ref]
		if len(pa.Points) == 0 {
			continue
		}
		sum := 0
		for _, ap := range pa.Points {
			sum += ap.Point.X
		}
		ks = append(ks, keyed{ref, sum / len(pa.Points)})
	}
	slices.SortStableFunc(ks, func(a, b keyed) int { return a.avg - b.avg })
	order := make([]access.PinRef, len(ks))
	for i, k := range ks {
		order[i] = k.ref
	}
	return order
}

// Solve searches patterns for p. Zero patterns after both pin orders is a
// soft NO_PATTERN error; the returned solution is still usable and simply
// carries no patterns. st may be nil.
func (s *Solver) Solve(ctx context.Context, p Problem, st *Stats) (Solution, error) {
	if st == nil {
		st = &Stats{}
	}
	st.Instances++
	order := p.Order
	if order == nil {
		order = PinOrder(p.Pins)
	}
	sol := Solution{Order: order, Patterns: slices.Clone(p.Existing)}
	if len(order) == 0 {
		// Nothing to access: the empty pattern is trivially clean.
		if len(sol.Patterns) == 0 {
			sol.Patterns = append(sol.Patterns, access.Pattern{Choice: []int{}, Left: -1, Right: -1})
			sol.Found = 1
		}
		return sol, nil
	}

	r := s.newRun(p, order, st)
	for _, pat := range sol.Patterns {
		r.seen[pat.Signature()] = true
		r.markBoundary(&pat)
	}

	forward := make([]int, len(order))
	for i := range forward {
		forward[i] = i
	}
	if err := r.pass(ctx, forward, &sol); err != nil {
		return sol, err
	}
	if sol.Found == 0 {
		st.Reversed++
		slices.Reverse(forward)
		if err := r.pass(ctx, forward, &sol); err != nil {
			return sol, err
		}
	}
	st.Patterns += sol.Found

	if len(sol.Patterns) == 0 {
		st.SoftFailures++
		in := &s.d.Instances[p.Inst]
		s.logger.Warn("no access pattern", "inst", in.Name, "origin", in.Origin, "order", fmt.Sprint(order), "iterations", s.opts.Iterations)
		return sol, errors.New(errors.ErrCodeNoPattern, "instance %s at %v: no valid access pattern for pin order %v", in.Name, in.Origin, order)
	}
	return sol, nil
}

// posAP is a point of the pin at a canonical order position.
type posAP struct{ pos, ap int }

// run is the scratch state of one Solve call.
type run struct {
	s       *Solver
	inst    db.InstID
	origin  geom.Point
	order   []access.PinRef
	pins    access.PinSet
	targets []drc.Figure
	st      *Stats

	seen  map[string]bool
	used  map[posAP]bool
	bad   map[posAP]bool
	pairs map[[2]posAP]bool
	tris  map[[3]posAP]bool
}

func (s *Solver) newRun(p Problem, order []access.PinRef, st *Stats) *run {
	return &run{
		s:       s,
		inst:    p.Inst,
		origin:  s.d.Instances[p.Inst].Origin,
		order:   order,
		pins:    p.Pins,
		targets: gen.InstFigures(s.d, p.Inst),
		st:      st,
		seen:    make(map[string]bool),
		used:    make(map[posAP]bool),
		bad:     make(map[posAP]bool),
		pairs:   make(map[[2]posAP]bool),
		tris:    make(map[[3]posAP]bool),
	}
}

func (r *run) point(n posAP) *access.AccessPoint {
	return &r.pins[r.order[n.pos]].Points[n.ap]
}

func (r *run) markBoundary(p *access.Pattern) {
	for _, pos := range []int{p.Left, p.Right} {
		if pos >= 0 && p.Choice[pos] >= 0 {
			r.used[posAP{pos, p.Choice[pos]}] = true
		}
	}
}

// pass runs up to the iteration cap with pins visited in perm order and
// appends every new clean pattern to sol.
func (r *run) pass(ctx context.Context, perm []int, sol *Solution) error {
	for it := 0; it < r.s.opts.Iterations; it++ {
		r.st.Iterations++
		pat, err := r.shortestPath(ctx, perm)
		if err != nil {
			return err
		}
		sig := pat.Signature()
		if r.seen[sig] {
			// Known result: discourage all of its points and retry.
			for pos, c := range pat.Choice {
				if c >= 0 {
					r.used[posAP{pos, c}] = true
				}
			}
			continue
		}
		r.seen[sig] = true

		owners, err := r.validate(ctx, &pat)
		if err != nil {
			return err
		}
		if owners == nil {
			sol.Patterns = append(sol.Patterns, pat)
			sol.Found++
			r.markBoundary(&pat)
			continue
		}
		r.blame(&pat, owners)
	}
	return nil
}

// shortestPath relaxes the layered graph in perm order and returns the best
// path as a pattern in canonical order.
func (r *run) shortestPath(ctx context.Context, perm []int) (access.Pattern, error) {
	n := len(perm)
	dist := make([][]int, n)
	prev := make([][]int, n)
	for i, pos := range perm {
		k := len(r.pins[r.order[pos]].Points)
		dist[i] = make([]int, k)
		prev[i] = slices.Repeat([]int{-1}, k)
	}
	for j := range dist[0] {
		dist[0][j] = r.penalty(posAP{perm[0], j})
	}
	for i := 1; i < n; i++ {
		for j := range dist[i] {
			cur := posAP{perm[i], j}
			best := -1
			for k := range dist[i-1] {
				last := posAP{perm[i-1], k}
				e, err := r.edge(ctx, perm, i, prev[i-1][k], last, cur)
				if err != nil {
					return access.Pattern{}, err
				}
				if c := dist[i-1][k] + e; best < 0 || c < dist[i][j] {
					dist[i][j], prev[i][j], best = c, k, k
				}
			}
			dist[i][j] += r.penalty(cur)
		}
	}

	end := 0
	for j := range dist[n-1] {
		if dist[n-1][j] < dist[n-1][end] {
			end = j
		}
	}
	pat := access.Pattern{Choice: slices.Repeat([]int{-1}, len(r.order)), Cost: dist[n-1][end]}
	for i, j := n-1, end; i >= 0; i-- {
		pat.Choice[perm[i]] = j
		j = prev[i][j]
	}
	pat.SetBoundary(r.order, r.pins)
	return pat, nil
}

func (r *run) penalty(n posAP) int {
	p := 0
	if r.used[n] {
		p += UsedBoundaryPenalty
	}
	if r.bad[n] {
		p += KnownViolationPenalty
	}
	return p
}

// edge is the cost of stepping from last (at layer i-1, reached from
// layer i-2 choice pp) to cur.
func (r *run) edge(ctx context.Context, perm []int, i, pp int, last, cur posAP) (int, error) {
	ok, err := r.pairClean(ctx, last, cur)
	if err != nil || !ok {
		return ViolationCost, err
	}
	if i >= 2 && pp >= 0 {
		ok, err := r.tripleClean(ctx, posAP{perm[i-2], pp}, last, cur)
		if err != nil || !ok {
			return ViolationCost, err
		}
	}
	return (r.point(last).Cost() + r.point(cur).Cost()) / 2, nil
}

func (r *run) pairClean(ctx context.Context, a, b posAP) (bool, error) {
	if b.pos < a.pos {
		a, b = b, a
	}
	key := [2]posAP{a, b}
	if ok, hit := r.pairs[key]; hit {
		return ok, nil
	}
	res, err := r.check(ctx, a, b)
	if err != nil {
		return false, err
	}
	r.pairs[key] = res.Clean()
	return res.Clean(), nil
}

func (r *run) tripleClean(ctx context.Context, a, b, c posAP) (bool, error) {
	key := [3]posAP{a, b, c}
	slices.SortFunc(key[:], func(x, y posAP) int { return x.pos - y.pos })
	if ok, hit := r.tris[key]; hit {
		return ok, nil
	}
	res, err := r.check(ctx, a, b, c)
	if err != nil {
		return false, err
	}
	r.tris[key] = res.Clean()
	return res.Clean(), nil
}

// validate checks the whole pattern and returns the implicated owners, nil
// when clean.
func (r *run) validate(ctx context.Context, pat *access.Pattern) ([]drc.Owner, error) {
	var nodes []posAP
	for pos, c := range pat.Choice {
		if c >= 0 {
			nodes = append(nodes, posAP{pos, c})
		}
	}
	res, err := r.check(ctx, nodes...)
	if err != nil || res.Clean() {
		return nil, err
	}
	return res.Owners(), nil
}

// blame adds the points of every implicated terminal to the violation set.
// With no attributable owner the whole path is blamed.
func (r *run) blame(pat *access.Pattern, owners []drc.Owner) {
	hit := false
	for _, o := range owners {
		if o.Kind != drc.OwnerTerm || o.Inst != int(r.inst) {
			continue
		}
		for pos, c := range pat.Choice {
			if c >= 0 && r.order[pos].Term == o.ID {
				r.bad[posAP{pos, c}] = true
				hit = true
			}
		}
	}
	if !hit {
		for pos, c := range pat.Choice {
			if c >= 0 {
				r.bad[posAP{pos, c}] = true
			}
		}
	}
}

func (r *run) check(ctx context.Context, nodes ...posAP) (drc.Result, error) {
	var figs []drc.Figure
	margin := 0
	for _, n := range nodes {
		ap := r.point(n)
		figs = append(figs, Figures(r.s.d.Tech, r.inst, r.order[n.pos].Term, r.origin, ap)...)
		margin = max(margin, 2*r.s.d.Tech.Layers[ap.Layer].Pitch)
	}
	if r.s.opts.CheckWindow > 0 {
		margin = r.s.opts.CheckWindow
	}
	window := figs[0].Rect
	for _, f := range figs[1:] {
		window = window.Union(f.Rect)
	}
	r.st.OracleCalls++
	res, err := r.s.oracle.Check(ctx, drc.Request{Targets: r.targets, Figures: figs, Window: window.Bloat(margin)})
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, errors.Wrap(errors.ErrCodeOracle, err, "instance %s: pattern check", r.s.d.Instances[r.inst].Name)
	}
	return res, nil
}

// Figures returns the shapes an access point contributes when used: its
// preferred via, or a width-sized patch on the pin layer for planar access.
// origin is the instance origin the point is relative to.
func Figures(t *db.Tech, inst db.InstID, term int, origin geom.Point, ap *access.AccessPoint) []drc.Figure {
	p := ap.Point.Add(origin)
	owner := drc.Term(int(inst), term)
	if v := ap.Via(); v >= 0 {
		return drc.ViaFigures(t, v, p, owner)
	}
	half := t.Layers[ap.Layer].Width / 2
	return []drc.Figure{{Layer: ap.Layer, Rect: geom.RectAround(p, half), Owner: owner, Kind: drc.KindWire}}
}

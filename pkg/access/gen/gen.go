// Package gen generates candidate access points for pins.
//
// For one pin the generator walks its layers from top to bottom and, tier by
// tier, combines coordinates taken from the pin layer's own tracks (the
// "lower" coordinate) with coordinates taken from the layer above (the
// "upper" coordinate). Each coordinate is produced under one alignment
// policy:
//
//	OnGrid      track coordinates inside the pin span
//	HalfGrid    midpoints between adjacent tracks
//	Center      the span center, only when fewer than two tracks cross it
//	EncOpt      offsets aligning a single-cut via enclosure with the pin edge
//	NearbyGrid  the closest tracks outside the span (last resort)
//
// Every candidate is then checked direction by direction against a
// [drc.Oracle]: a short test wire for each planar direction and the via
// library for up access. A point survives with at least one legal direction.
// Generation stops as soon as the pin has enough well-separated points.
package gen

import (
	"context"
	"slices"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// Default option values.
const (
	DefaultMinStdCellPoints = 3
	DefaultMinMacroPoints   = 3
	DefaultViaAccessLayer   = 1
	DefaultMaxViasPerPoint  = 3
)

// Options configures generation.
type Options struct {
	// MinStdCellPoints and MinMacroPoints are the sparse point counts at
	// which generation stops for standard-cell and macro pins.
	MinStdCellPoints int
	MinMacroPoints   int
	// ViaAccessLayer is the routing ordinal (M1 = 1) at and below which
	// standard-cell pins get via access only. Zero disables the restriction.
	ViaAccessLayer int
	// MaxViaAccessLayer is the highest routing ordinal on which up access is
	// attempted. Zero means no limit.
	MaxViaAccessLayer int
	// CheckWindow is the half-size of the oracle window around a point. Zero
	// uses two pitches of the point's layer.
	CheckWindow int
	// MaxViasPerPoint bounds the ranked via list of a point. Zero or less
	// keeps every legal via.
	MaxViasPerPoint int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MinStdCellPoints: DefaultMinStdCellPoints,
		MinMacroPoints:   DefaultMinMacroPoints,
		ViaAccessLayer:   DefaultViaAccessLayer,
		MaxViasPerPoint:  DefaultMaxViasPerPoint,
	}
}

// Stats accumulates generation counters. Each worker owns one; they are
// merged after the parallel region.
type Stats struct {
	Pins        int
	Points      int
	OracleCalls int
	Failures    int
	// ByCost counts points by [lower][upper] alignment.
	ByCost [access.NumCosts][access.NumCosts]int
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Pins += o.Pins
	s.Points += o.Points
	s.OracleCalls += o.OracleCalls
	s.Failures += o.Failures
	for l := range s.ByCost {
		for u := range s.ByCost[l] {
			s.ByCost[l][u] += o.ByCost[l][u]
		}
	}
}

// Target names the pin to generate for: a pin of an instance terminal, or a
// pin of a block terminal when Role is RoleIO.
type Target struct {
	Role access.Role
	Inst db.InstID
	Ref  access.PinRef
	IO   db.IOTermID
}

// InstPin targets pin ref of inst.
func InstPin(d *db.Design, inst db.InstID, ref access.PinRef) Target {
	role := access.RoleMacro
	if m, ok := d.MasterOf(inst); ok {
		role = access.RoleOf(m)
	}
	return Target{Role: role, Inst: inst, Ref: ref, IO: -1}
}

// IOPin targets pin of block terminal id.
func IOPin(id db.IOTermID, pin int) Target {
	return Target{Role: access.RoleIO, Inst: -1, Ref: access.PinRef{Term: -1, Pin: pin}, IO: id}
}

// Generator produces access points. It is stateless apart from its
// configuration and safe for concurrent use when the oracle is.
type Generator struct {
	d      *db.Design
	oracle drc.Oracle
	opts   Options
}

// New returns a generator over d.
func New(d *db.Design, oracle drc.Oracle, opts Options) *Generator {
	return &Generator{d: d, oracle: oracle, opts: opts}
}

// tier is one (lower, upper) alignment combination.
type tier struct{ lower, upper access.Cost }

// regularTiers lists every combination below NearbyGrid, cheapest point
// cost first. nearbyTiers holds the NearbyGrid fallback in the same order.
var regularTiers, nearbyTiers = buildTiers()

func buildTiers() (regular, nearby []tier) {
	for l := access.OnGrid; l < access.NumCosts; l++ {
		for u := access.OnGrid; u < access.NumCosts; u++ {
			t := tier{l, u}
			if l == access.NearbyGrid || u == access.NearbyGrid {
				nearby = append(nearby, t)
			} else {
				regular = append(regular, t)
			}
		}
	}
	less := func(a, b tier) int {
		ca := (&access.AccessPoint{Lower: a.lower, Upper: a.upper}).Cost()
		cb := (&access.AccessPoint{Lower: b.lower, Upper: b.upper}).Cost()
		if ca != cb {
			return ca - cb
		}
		return int(a.lower - b.lower)
	}
	slices.SortFunc(regular, less)
	slices.SortFunc(nearby, less)
	return regular, nearby
}

// Generate computes the access set of one pin. A pin without any legal
// point yields a NO_ACCESS_POINT error. st may be nil.
func (g *Generator) Generate(ctx context.Context, t Target, st *Stats) (*access.PinAccess, error) {
	if st == nil {
		st = &Stats{}
	}
	pc, err := g.prepare(t)
	if err != nil {
		return nil, err
	}
	st.Pins++

	pa := &access.PinAccess{}
	seen := make(map[pointKey]bool)
	for _, tr := range regularTiers {
		if err := g.runTier(ctx, pc, tr, pa, seen, st); err != nil {
			return nil, err
		}
		if g.enough(pc, pa) {
			break
		}
	}
	if len(pa.Points) == 0 {
		for _, tr := range nearbyTiers {
			if err := g.runTier(ctx, pc, tr, pa, seen, st); err != nil {
				return nil, err
			}
			if len(pa.Points) > 0 && g.enough(pc, pa) {
				break
			}
		}
	}
	if len(pa.Points) == 0 {
		st.Failures++
		return nil, errors.New(errors.ErrCodeNoAccessPoint, "%s: no legal access point", pc.name)
	}
	st.Points += len(pa.Points)
	return pa, nil
}

// GenerateInst computes the access sets of every signal pin of inst.
func (g *Generator) GenerateInst(ctx context.Context, inst db.InstID, st *Stats) (access.PinSet, error) {
	m, ok := g.d.MasterOf(inst)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownMaster, "instance %s: master %d is not registered", g.d.Instances[inst].Name, g.d.Instances[inst].Master)
	}
	ps := make(access.PinSet)
	for ti := range m.Terms {
		if !m.Terms[ti].IsSignal() {
			continue
		}
		for pi := range m.Terms[ti].Pins {
			ref := access.PinRef{Term: ti, Pin: pi}
			pa, err := g.Generate(ctx, InstPin(g.d, inst, ref), st)
			if err != nil {
				return nil, err
			}
			ps[ref] = pa
		}
	}
	return ps, nil
}

type pointKey struct {
	layer db.LayerID
	p     geom.Point
}

func (g *Generator) runTier(ctx context.Context, pc *pinCtx, tr tier, pa *access.PinAccess, seen map[pointKey]bool, st *Stats) error {
	for _, ls := range pc.layers {
		for _, rect := range ls.rects {
			for _, p := range g.candidates(ls.layer, rect, tr) {
				k := pointKey{ls.layer, p}
				if seen[k] {
					continue
				}
				seen[k] = true
				ap, ok, err := g.check(ctx, pc, ls.layer, rect, p, tr, st)
				if err != nil {
					return err
				}
				if ok {
					pa.Points = append(pa.Points, ap)
					st.ByCost[tr.lower][tr.upper]++
				}
			}
		}
	}
	return nil
}

// enough applies the stop rule of the pin's role.
func (g *Generator) enough(pc *pinCtx, pa *access.PinAccess) bool {
	if pc.target.Role == access.RoleIO {
		return len(pa.Points) >= 1
	}
	need := g.opts.MinMacroPoints
	if pc.target.Role == access.RoleStdCell {
		need = g.opts.MinStdCellPoints
	}
	if need <= 0 {
		return len(pa.Points) > 0
	}
	return Sparse(g.d.Tech, pa.Points) >= need
}

// Sparse counts points that are at least one layer pitch apart from every
// previously counted point on the same layer, scanning in order.
func Sparse(t *db.Tech, pts []access.AccessPoint) int {
	var kept []*access.AccessPoint
	for i := range pts {
		ap := &pts[i]
		pitch := t.Layers[ap.Layer].Pitch
		ok := true
		for _, k := range kept {
			if k.Layer == ap.Layer && geom.Manhattan(k.Point, ap.Point) < pitch {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, ap)
		}
	}
	return len(kept)
}

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

// check builds the access point at p and verifies each direction. ok is
// false when no direction is legal.
func (g *Generator) check(ctx context.Context, pc *pinCtx, l db.LayerID, rect geom.Rect, p geom.Point, tr tier, st *Stats) (access.AccessPoint, bool, error) {
	ap := access.AccessPoint{Point: p.Sub(pc.origin), Layer: l, Lower: tr.lower, Upper: tr.upper}
	dirs, vias, err := g.legalDirs(ctx, pc, l, rect, p, tr, st)
	if err != nil {
		return ap, false, err
	}
	ap.Dirs, ap.Vias = dirs, vias
	return ap, dirs.Any(), nil
}

func (g *Generator) legalDirs(ctx context.Context, pc *pinCtx, l db.LayerID, rect geom.Rect, p geom.Point, tr tier, st *Stats) (access.DirSet, []int, error) {
	dirs := g.planarDirs(pc, l, tr)
	for _, d := range access.Planar {
		if !dirs.Has(d) {
			continue
		}
		fig := drc.Figure{Layer: l, Rect: planarWire(g.d.Tech, l, rect, p, d), Owner: pc.owner, Kind: drc.KindWire}
		ok, err := g.clean(ctx, pc, p, l, []drc.Figure{fig}, st)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			dirs = dirs.Without(d)
		}
	}
	if !g.upAllowed(l) {
		return dirs, nil, nil
	}
	vias, err := g.legalVias(ctx, pc, l, rect, p, st)
	if err != nil {
		return 0, nil, err
	}
	if len(vias) > 0 {
		dirs = dirs.With(access.Up)
	}
	return dirs, vias, nil
}

// planarDirs returns the planar directions allowed before any oracle check.
func (g *Generator) planarDirs(pc *pinCtx, l db.LayerID, tr tier) access.DirSet {
	t := g.d.Tech
	if pc.target.Role == access.RoleStdCell && g.opts.ViaAccessLayer > 0 && t.RoutingOrdinal(l) <= g.opts.ViaAccessLayer {
		return 0
	}
	lay := &t.Layers[l]
	right, wrong := [2]access.Dir{access.East, access.West}, [2]access.Dir{access.North, access.South}
	if !lay.IsHorizontal() {
		right, wrong = wrong, right
	}
	dirs := access.AllPlanar
	if lay.RectOnly || lay.RightWayOnGridOnly {
		dirs = dirs.Without(wrong[0]).Without(wrong[1])
	}
	if lay.RightWayOnGridOnly && tr.lower != access.OnGrid {
		dirs = dirs.Without(right[0]).Without(right[1])
	}
	return dirs
}

// planarWire is the test wire leaving p in direction d: layer width, running
// one pitch past the pin rectangle.
func planarWire(t *db.Tech, l db.LayerID, rect geom.Rect, p geom.Point, d access.Dir) geom.Rect {
	lay := &t.Layers[l]
	half, ext := lay.Width/2, lay.Pitch
	switch d {
	case access.East:
		return geom.R(p.X, p.Y-half, max(rect.XHi, p.X)+ext, p.Y+half)
	case access.West:
		return geom.R(min(rect.XLo, p.X)-ext, p.Y-half, p.X, p.Y+half)
	case access.North:
		return geom.R(p.X-half, p.Y, p.X+half, max(rect.YHi, p.Y)+ext)
	default:
		return geom.R(p.X-half, min(rect.YLo, p.Y)-ext, p.X+half, p.Y)
	}
}

func (g *Generator) upAllowed(l db.LayerID) bool {
	t := g.d.Tech
	if t.RoutingAbove(l) == db.NoLayer {
		return false
	}
	return g.opts.MaxViaAccessLayer <= 0 || t.RoutingOrdinal(l) <= g.opts.MaxViaAccessLayer
}

// legalVias returns the via defs that fit at p, ranked by bottom enclosure
// area outside the pin, then default vias first, then fewer cuts.
func (g *Generator) legalVias(ctx context.Context, pc *pinCtx, l db.LayerID, rect geom.Rect, p geom.Point, st *Stats) ([]int, error) {
	t := g.d.Tech
	type ranked struct {
		via     int
		outside int
		cuts    int
		def     bool
	}
	var cands []ranked
	for _, v := range t.ViasFrom(l) {
		ok, err := g.clean(ctx, pc, p, l, drc.ViaFigures(t, v, p, pc.owner), st)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		vd := &t.Vias[v]
		bot := vd.BotRect.Translate(p)
		cands = append(cands, ranked{via: v, outside: bot.Area() - bot.Intersect(rect).Area(), cuts: vd.NumCuts, def: vd.Default})
	}
	slices.SortStableFunc(cands, func(a, b ranked) int {
		switch {
		case a.outside != b.outside:
			return a.outside - b.outside
		case a.def != b.def:
			if a.def {
				return -1
			}
			return 1
		case a.cuts != b.cuts:
			return a.cuts - b.cuts
		}
		return a.via - b.via
	})
	if n := g.opts.MaxViasPerPoint; n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	vias := make([]int, len(cands))
	for i, c := range cands {
		vias[i] = c.via
	}
	return vias, nil
}

// clean asks the oracle about figs in a window around p.
func (g *Generator) clean(ctx context.Context, pc *pinCtx, p geom.Point, l db.LayerID, figs []drc.Figure, st *Stats) (bool, error) {
	win := g.opts.CheckWindow
	if win <= 0 {
		win = 2 * g.d.Tech.Layers[l].Pitch
	}
	window := geom.RectAround(p, win)
	for _, f := range figs {
		window = window.Union(f.Rect)
	}
	st.OracleCalls++
	res, err := g.oracle.Check(ctx, drc.Request{Targets: pc.targets, Figures: figs, Window: window})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.Wrap(errors.ErrCodeOracle, err, "%s: check at %v", pc.name, p)
	}
	return res.Clean(), nil
}

// Verify recomputes the legal directions of ap from scratch, as if it were
// generated again on pin t. Planar wires are measured from the first pin
// rectangle containing the point.
func (g *Generator) Verify(ctx context.Context, t Target, ap access.AccessPoint) (access.DirSet, error) {
	pc, err := g.prepare(t)
	if err != nil {
		return 0, err
	}
	p := ap.Point.Add(pc.origin)
	// The first rectangle containing p, else the nearest one.
	rect, best := geom.Rect{}, -1
	for _, ls := range pc.layers {
		if ls.layer != ap.Layer {
			continue
		}
		for _, r := range ls.rects {
			if d := geom.PointRectDist(p, r); best < 0 || d < best {
				rect, best = r, d
			}
		}
	}
	if best < 0 {
		return 0, errors.New(errors.ErrCodeNotFound, "%s: no shape on layer %d", pc.name, ap.Layer)
	}
	dirs, _, err := g.legalDirs(ctx, pc, ap.Layer, rect, p, tier{ap.Lower, ap.Upper}, &Stats{})
	return dirs, err
}

package gen

import (
	"slices"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// span is a closed interval relative to a via origin.
type span struct{ lo, hi int }

// candidates combines lower and upper coordinates of one tier into points
// on rect. Horizontal layers take Y from their own tracks and X from the
// layer above; vertical layers the other way round.
func (g *Generator) candidates(l db.LayerID, rect geom.Rect, tr tier) []geom.Point {
	lay := &g.d.Tech.Layers[l]
	horiz := lay.Dir == db.Horizontal
	perp := db.Vertical
	if !horiz {
		perp = db.Horizontal
	}

	lowerLo, lowerHi, upperLo, upperHi := rect.YLo, rect.YHi, rect.XLo, rect.XHi
	if !horiz {
		lowerLo, lowerHi, upperLo, upperHi = rect.XLo, rect.XHi, rect.YLo, rect.YHi
	}
	lowerEnc, upperEnc := g.enclosures(l, horiz)

	lc := coords(g.d.TracksOn(l, lay.Dir), lowerLo, lowerHi, tr.lower, lowerEnc)
	if len(lc) == 0 {
		return nil
	}
	uc := coords(g.upperTracks(l, perp), upperLo, upperHi, tr.upper, upperEnc)

	pts := make([]geom.Point, 0, len(lc)*len(uc))
	for _, a := range lc {
		for _, b := range uc {
			if horiz {
				pts = append(pts, geom.Pt(b, a))
			} else {
				pts = append(pts, geom.Pt(a, b))
			}
		}
	}
	return pts
}

// upperTracks returns the tracks giving the upper coordinate: the layer
// above's tracks across l, or l's own non-preferred tracks on the top layer.
func (g *Generator) upperTracks(l db.LayerID, perp db.Direction) []*db.TrackPattern {
	if up := g.d.Tech.RoutingAbove(l); up != db.NoLayer {
		if tps := g.d.TracksOn(up, perp); len(tps) > 0 {
			return tps
		}
	}
	return g.d.TracksOn(l, perp)
}

// enclosures returns the bottom enclosure extents of the single-cut vias
// landing on l, split into the lower-coordinate axis and the upper one.
func (g *Generator) enclosures(l db.LayerID, horiz bool) (lower, upper []span) {
	t := g.d.Tech
	for _, v := range t.ViasFrom(l) {
		vd := &t.Vias[v]
		if vd.NumCuts != 1 {
			continue
		}
		x := span{vd.BotRect.XLo, vd.BotRect.XHi}
		y := span{vd.BotRect.YLo, vd.BotRect.YHi}
		if horiz {
			lower, upper = append(lower, y), append(upper, x)
		} else {
			lower, upper = append(lower, x), append(upper, y)
		}
	}
	return lower, upper
}

// coords returns the sorted coordinates in [lo, hi] produced by policy c.
// NearbyGrid coordinates lie outside the span by construction.
func coords(tracks []*db.TrackPattern, lo, hi int, c access.Cost, enc []span) []int {
	var out []int
	switch c {
	case access.OnGrid:
		out = onGrid(tracks, lo, hi)
	case access.HalfGrid:
		grid := onGrid(tracks, lo, hi)
		for _, tp := range tracks {
			half := tp.Step / 2
			if half == 0 {
				continue
			}
			for _, v := range tp.Coords(lo-half, hi-half) {
				// The last track has no neighbour to be midway to.
				if v == tp.Last() {
					continue
				}
				if !slices.Contains(grid, v+half) {
					out = append(out, v+half)
				}
			}
		}
	case access.Center:
		if len(onGrid(tracks, lo, hi)) < 2 {
			out = append(out, geom.R(lo, 0, hi, 0).Center().X)
		}
	case access.EncOpt:
		for _, e := range enc {
			// Align the enclosure's low edge, then its high edge, with the
			// pin's. Enclosures wider than the pin cannot align.
			for _, v := range []int{lo - e.lo, hi - e.hi} {
				if v >= lo && v <= hi {
					out = append(out, v)
				}
			}
		}
	case access.NearbyGrid:
		for _, tp := range tracks {
			below, okBelow, above, okAbove := tp.Nearest(lo, hi)
			if okBelow {
				out = append(out, below)
			}
			if okAbove {
				out = append(out, above)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func onGrid(tracks []*db.TrackPattern, lo, hi int) []int {
	var out []int
	for _, tp := range tracks {
		out = append(out, tp.Coords(lo, hi)...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

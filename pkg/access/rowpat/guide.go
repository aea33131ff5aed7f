package rowpat

import (
	"fmt"

	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// GuideMode selects how a net's route guides are reduced to a target point.
type GuideMode int

const (
	GuideOff GuideMode = iota
	// GuideCentroid averages the guide centers.
	GuideCentroid
	// GuideLayerWeighted averages the guide centers weighted by the routing
	// ordinal of their layer.
	GuideLayerWeighted
	// GuideNearest takes the center of the guide nearest to the pin.
	GuideNearest
	// GuideNearestNonVia is GuideNearest over guides that are not stacked
	// copies of a guide on another layer.
	GuideNearestNonVia
)

func (m GuideMode) String() string {
	switch m {
	case GuideOff:
		return "off"
	case GuideCentroid:
		return "centroid"
	case GuideLayerWeighted:
		return "layer-weighted"
	case GuideNearest:
		return "nearest"
	case GuideNearestNonVia:
		return "nearest-non-via"
	}
	return fmt.Sprintf("GuideMode(%d)", int(m))
}

// MaxGuidePenalty caps the penalty of a single access point.
const MaxGuidePenalty = 50

// guidePenalty scores the points pat chooses on inst against the route
// guides of their nets.
func (s *Solver) guidePenalty(inst db.InstID, n *node) int {
	if s.opts.Guide == GuideOff {
		return 0
	}
	m, ok := s.d.MasterOf(inst)
	if !ok {
		return 0
	}
	xf := s.d.Transform(inst)
	origin := s.d.Instances[inst].Origin
	total := 0
	for pos, c := range n.pat.Choice {
		if c < 0 {
			continue
		}
		ref := n.order[pos]
		net := s.d.TermNet(inst, ref.Term)
		if net == db.NoNet || len(s.d.Nets[net].Guides) == 0 {
			continue
		}
		var rects []geom.Rect
		for _, sh := range m.Terms[ref.Term].Pins[ref.Pin].Shapes {
			rects = append(rects, xf.Rect(sh.Rect))
		}
		box, ok := geom.BBox(rects)
		if !ok {
			continue
		}
		target, ok := estimate(s.d, s.opts.Guide, s.d.Nets[net].Guides, box)
		if !ok {
			continue
		}
		ap := &n.pins[ref].Points[c]
		total += penalty(s.d.Tech, ap.Layer, ap.Point.Add(origin), target, box)
	}
	return total
}

// penalty charges an access point for the distance to target beyond the
// pin's own distance to it, scaled to tenths of a pitch.
func penalty(t *db.Tech, l db.LayerID, p, target geom.Point, pin geom.Rect) int {
	excess := geom.Manhattan(p, target) - geom.PointRectDist(target, pin)
	pitch := t.Layers[l].Pitch
	if excess <= 0 || pitch <= 0 {
		return 0
	}
	return min(MaxGuidePenalty, excess*10/pitch)
}

// estimate reduces guides to the target point of mode for a pin with
// bounding box pin.
func estimate(d *db.Design, mode GuideMode, guides []db.Guide, pin geom.Rect) (geom.Point, bool) {
	switch mode {
	case GuideCentroid:
		return centroid(guides, func(db.Guide) int { return 1 })
	case GuideLayerWeighted:
		return centroid(guides, func(g db.Guide) int { return max(1, d.Tech.RoutingOrdinal(g.Layer)) })
	case GuideNearest:
		return nearest(guides, pin, func(int) bool { return true })
	case GuideNearestNonVia:
		if p, ok := nearest(guides, pin, func(i int) bool { return !isViaGuide(guides, i) }); ok {
			return p, true
		}
		return nearest(guides, pin, func(int) bool { return true })
	}
	return geom.Point{}, false
}

func centroid(guides []db.Guide, weight func(db.Guide) int) (geom.Point, bool) {
	var sx, sy, sw int
	for _, g := range guides {
		w := weight(g)
		c := g.Rect.Center()
		sx += w * c.X
		sy += w * c.Y
		sw += w
	}
	if sw == 0 {
		return geom.Point{}, false
	}
	return geom.Pt(sx/sw, sy/sw), true
}

func nearest(guides []db.Guide, pin geom.Rect, keep func(int) bool) (geom.Point, bool) {
	best, bestDist := -1, 0
	for i, g := range guides {
		if !keep(i) {
			continue
		}
		dx, dy := geom.Gap(pin, g.Rect)
		if best < 0 || dx+dy < bestDist {
			best, bestDist = i, dx+dy
		}
	}
	if best < 0 {
		return geom.Point{}, false
	}
	return guides[best].Rect.Center(), true
}

// isViaGuide reports whether guide i repeats the rectangle of a guide on
// another layer, which marks a layer change rather than a routing segment.
func isViaGuide(guides []db.Guide, i int) bool {
	for j, g := range guides {
		if j != i && g.Layer != guides[i].Layer && g.Rect == guides[i].Rect {
			return true
		}
	}
	return false
}

package drc

import (
	"context"

	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// Rule names reported by SpacingChecker.
const (
	RuleShort   = "short"
	RuleSpacing = "spacing"
)

// SpacingChecker is a minimal rule deck: different-owner shapes on one layer
// must not overlap and must keep the layer's spacing. It covers what the
// access-point tests and the CLI need; production flows plug in a full DRC
// engine through Oracle.
type SpacingChecker struct {
	Tech *db.Tech
}

// NewSpacingChecker returns a checker for tech.
func NewSpacingChecker(t *db.Tech) *SpacingChecker { return &SpacingChecker{Tech: t} }

// Check implements Oracle.
func (c *SpacingChecker) Check(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	clip := req.Window != (geom.Rect{})
	keep := func(f Figure) bool { return !clip || f.Rect.Intersects(req.Window) }

	figs := make([]Figure, 0, len(req.Figures))
	for _, f := range req.Figures {
		if keep(f) {
			figs = append(figs, f)
		}
	}
	var res Result
	for i, a := range figs {
		for _, b := range figs[i+1:] {
			if m, ok := c.pair(a, b); ok {
				res.Markers = append(res.Markers, m)
			}
		}
		for _, b := range req.Targets {
			if !keep(b) {
				continue
			}
			if m, ok := c.pair(a, b); ok {
				res.Markers = append(res.Markers, m)
			}
		}
	}
	return res, nil
}

func (c *SpacingChecker) pair(a, b Figure) (Marker, bool) {
	if a.Layer != b.Layer || !c.Tech.Valid(a.Layer) {
		return Marker{}, false
	}
	if a.Owner == b.Owner && a.Owner.Kind != OwnerObs {
		return Marker{}, false
	}
	owners := []Owner{a.Owner}
	if b.Owner != a.Owner {
		owners = append(owners, b.Owner)
	}
	if a.Rect.Overlaps(b.Rect) || (a.Rect.Intersects(b.Rect) && a.Owner != b.Owner) {
		return Marker{Rule: RuleShort, Layer: a.Layer, Rect: a.Rect.Intersect(b.Rect), Owners: owners}, true
	}
	spacing := c.Tech.Layers[a.Layer].Spacing
	if spacing <= 0 {
		return Marker{}, false
	}
	dx, dy := geom.Gap(a.Rect, b.Rect)
	// Euclidean spacing, compared squared.
	if dx*dx+dy*dy < spacing*spacing {
		return Marker{Rule: RuleSpacing, Layer: a.Layer, Rect: a.Rect.Union(b.Rect), Owners: owners}, true
	}
	return Marker{}, false
}

var _ Oracle = (*SpacingChecker)(nil)

package gen

import (
	"fmt"
	"slices"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// layerShapes is the maximal-rectangle decomposition of a pin on one layer.
type layerShapes struct {
	layer db.LayerID
	rects []geom.Rect
}

// pinCtx is the placed geometry of one pin plus everything the checks need.
type pinCtx struct {
	target  Target
	name    string
	owner   drc.Owner
	origin  geom.Point
	layers  []layerShapes // top layer first
	targets []drc.Figure
}

// prepare places the pin and its context in design coordinates.
func (g *Generator) prepare(t Target) (*pinCtx, error) {
	pc := &pinCtx{target: t}
	var shapes []db.Shape
	switch t.Role {
	case access.RoleIO:
		if t.IO < 0 || int(t.IO) >= len(g.d.IOTerms) {
			return nil, errors.New(errors.ErrCodeNotFound, "io term %d", t.IO)
		}
		io := &g.d.IOTerms[t.IO]
		pc.name = fmt.Sprintf("io %s pin %d", io.Name, t.Ref.Pin)
		pc.owner = drc.IO(int(t.IO))
		shapes = io.Pins[t.Ref.Pin].Shapes
		for _, pin := range io.Pins {
			for _, s := range pin.Shapes {
				pc.targets = append(pc.targets, drc.Figure{Layer: s.Layer, Rect: s.Rect, Owner: pc.owner, Kind: drc.KindPin})
			}
		}
	default:
		m, ok := g.d.MasterOf(t.Inst)
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownMaster, "instance %s: master %d is not registered", g.d.Instances[t.Inst].Name, g.d.Instances[t.Inst].Master)
		}
		in := &g.d.Instances[t.Inst]
		xf := g.d.Transform(t.Inst)
		pc.name = fmt.Sprintf("instance %s pin %s.%d", in.Name, m.Terms[t.Ref.Term].Name, t.Ref.Pin)
		pc.owner = drc.Term(int(t.Inst), t.Ref.Term)
		pc.origin = in.Origin
		for _, s := range m.Terms[t.Ref.Term].Pins[t.Ref.Pin].Shapes {
			shapes = append(shapes, db.Shape{Layer: s.Layer, Rect: xf.Rect(s.Rect)})
		}
		pc.targets = InstFigures(g.d, t.Inst)
	}

	byLayer := make(map[db.LayerID][]geom.Rect)
	for _, s := range shapes {
		if g.d.Tech.Valid(s.Layer) && g.d.Tech.Layers[s.Layer].Kind == db.Routing {
			byLayer[s.Layer] = append(byLayer[s.Layer], s.Rect)
		}
	}
	for l, rs := range byLayer {
		pc.layers = append(pc.layers, layerShapes{layer: l, rects: geom.MaxRects(rs)})
	}
	slices.SortFunc(pc.layers, func(a, b layerShapes) int { return int(b.layer - a.layer) })
	return pc, nil
}

// InstFigures returns the placed pin and obstruction shapes of inst, owned
// by their terminals and the instance blockage owner.
func InstFigures(d *db.Design, inst db.InstID) []drc.Figure {
	m, ok := d.MasterOf(inst)
	if !ok {
		return nil
	}
	xf := d.Transform(inst)
	var figs []drc.Figure
	for ti := range m.Terms {
		owner := drc.Term(int(inst), ti)
		for _, pin := range m.Terms[ti].Pins {
			for _, s := range pin.Shapes {
				figs = append(figs, drc.Figure{Layer: s.Layer, Rect: xf.Rect(s.Rect), Owner: owner, Kind: drc.KindPin})
			}
		}
	}
	for _, s := range m.Obs {
		figs = append(figs, drc.Figure{Layer: s.Layer, Rect: xf.Rect(s.Rect), Owner: drc.Obs(int(inst)), Kind: drc.KindObs})
	}
	return figs
}

// Package drc defines the contract between the pin-access engine and a
// design-rule-check engine.
//
// The engine treats DRC as an oracle: it hands over fixed target geometry and
// a handful of transient figures (test wires, vias) and reads back markers.
// Each marker names the owners of the offending shapes, which lets callers
// attribute a violation to the access-point choice that produced it.
//
// Oracles must be stateless per call. The engine invokes them concurrently
// from its worker pool with independent requests.
package drc

import (
	"context"
	"slices"

	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// OwnerKind classifies who a shape belongs to.
type OwnerKind int

const (
	OwnerNone OwnerKind = iota
	// OwnerTerm is a master terminal, ID is the term index.
	OwnerTerm
	// OwnerNet is a routed net, ID is the net handle.
	OwnerNet
	// OwnerObs is a blockage; it conflicts with every other owner.
	OwnerObs
	// OwnerIO is a block-level terminal, ID is the IO term handle.
	OwnerIO
)

// Owner identifies the electrical owner of a shape. Shapes with equal owners
// may touch and overlap freely.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   int       `json:"id"`
	// Inst disambiguates terminals of different instances. It is -1 for
	// shapes that do not belong to an instance.
	Inst int `json:"inst"`
}

// Term returns the owner of terminal term on instance inst.
func Term(inst, term int) Owner { return Owner{Kind: OwnerTerm, ID: term, Inst: inst} }

// Obs returns the blockage owner of instance inst.
func Obs(inst int) Owner { return Owner{Kind: OwnerObs, Inst: inst} }

// IO returns the owner of block terminal id.
func IO(id int) Owner { return Owner{Kind: OwnerIO, ID: id, Inst: -1} }

// FigureKind tags figures for rule selection and diagnostics.
type FigureKind int

const (
	KindPin FigureKind = iota
	KindObs
	KindWire
	KindVia
)

// Figure is a shape on a layer.
type Figure struct {
	Layer db.LayerID `json:"layer"`
	Rect  geom.Rect  `json:"rect"`
	Owner Owner      `json:"owner"`
	Kind  FigureKind `json:"kind"`
}

// Request is one oracle query.
type Request struct {
	// Targets is the fixed geometry the figures are checked against.
	Targets []Figure
	// Figures are the transient shapes under test. Markers are only reported
	// for interactions involving at least one figure.
	Figures []Figure
	// Window bounds extraction. Shapes entirely outside it are ignored. The
	// zero Rect disables clipping.
	Window geom.Rect
}

// Marker is one violation.
type Marker struct {
	Rule   string     `json:"rule"`
	Layer  db.LayerID `json:"layer"`
	Rect   geom.Rect  `json:"rect"`
	Owners []Owner    `json:"owners"`
}

// Result lists the markers of a check.
type Result struct {
	Markers []Marker
}

// Clean reports whether no violation was found.
func (r Result) Clean() bool { return len(r.Markers) == 0 }

// Owners returns the distinct owners implicated by any marker, in first-seen
// order.
func (r Result) Owners() []Owner {
	var out []Owner
	for _, m := range r.Markers {
		for _, o := range m.Owners {
			if !slices.Contains(out, o) {
				out = append(out, o)
			}
		}
	}
	return out
}

// Oracle checks transient figures against target geometry.
type Oracle interface {
	Check(ctx context.Context, req Request) (Result, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, req Request) (Result, error)

// Check calls f.
func (f OracleFunc) Check(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// ViaFigures places via def v at p and returns its three shapes.
func ViaFigures(t *db.Tech, v int, p geom.Point, owner Owner) []Figure {
	vd := &t.Vias[v]
	return []Figure{
		{Layer: vd.Bottom, Rect: vd.BotRect.Translate(p), Owner: owner, Kind: KindVia},
		{Layer: vd.CutL, Rect: vd.CutRect.Translate(p), Owner: owner, Kind: KindVia},
		{Layer: vd.Top, Rect: vd.TopRect.Translate(p), Owner: owner, Kind: KindVia},
	}
}

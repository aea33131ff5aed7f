// Package db is the technology and placement object model consumed by the
// pin-access engine.
//
// Every object lives in a slice owned by [Tech] or [Design] and is referred to
// by an integer handle, so analysis packages can keep cross references without
// holding pointers into the model. Handles are stable for the lifetime of the
// design; removing an instance marks it [Instance.Removed] instead of
// compacting the slice.
package db

import (
	"fmt"

	"github.com/matzehuels/pinaccess/pkg/geom"
)

// LayerID indexes Tech.Layers. Layers are ordered bottom to top with routing
// and cut layers interleaved.
type LayerID int

// NoLayer marks the absence of a layer.
const NoLayer LayerID = -1

// LayerKind distinguishes routing (metal) layers from cut (via) layers.
type LayerKind int

const (
	Routing LayerKind = iota
	Cut
)

// Direction is the preferred routing direction of a layer, or the
// orientation of a track pattern.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

func (d Direction) String() string {
	if d == Vertical {
		return "VERTICAL"
	}
	return "HORIZONTAL"
}

// Layer describes one technology layer.
type Layer struct {
	Name    string    `json:"name"`
	Kind    LayerKind `json:"kind"`
	Dir     Direction `json:"dir"`
	Pitch   int       `json:"pitch"`
	Width   int       `json:"width"`
	Spacing int       `json:"spacing"`

	// RectOnly forbids non-rectangular wire shapes, which in practice forbids
	// wrong-way jogs out of a pin.
	RectOnly bool `json:"rect_only,omitempty"`
	// RightWayOnGridOnly requires preferred-direction wires to sit on a track.
	RightWayOnGridOnly bool `json:"right_way_on_grid_only,omitempty"`
}

// IsHorizontal reports whether the preferred direction is horizontal.
func (l *Layer) IsHorizontal() bool { return l.Dir == Horizontal }

// ViaDef is a via template. Shapes are relative to the via origin, which is
// placed on the access point.
type ViaDef struct {
	Name    string    `json:"name"`
	Bottom  LayerID   `json:"bottom"`
	CutL    LayerID   `json:"cut"`
	Top     LayerID   `json:"top"`
	BotRect geom.Rect `json:"bot_rect"`
	CutRect geom.Rect `json:"cut_rect"`
	TopRect geom.Rect `json:"top_rect"`
	NumCuts int       `json:"num_cuts"`
	Default bool      `json:"default,omitempty"`
}

// Tech is the layer stack and via library.
type Tech struct {
	DBU    int      `json:"dbu"`
	Layers []Layer  `json:"layers"`
	Vias   []ViaDef `json:"vias"`
}

// Layer returns the layer for id. It panics on an out-of-range handle.
func (t *Tech) Layer(id LayerID) *Layer { return &t.Layers[id] }

// Valid reports whether id names a layer.
func (t *Tech) Valid(id LayerID) bool { return id >= 0 && int(id) < len(t.Layers) }

// LayerByName looks up a layer handle by name.
func (t *Tech) LayerByName(name string) (LayerID, bool) {
	for i := range t.Layers {
		if t.Layers[i].Name == name {
			return LayerID(i), true
		}
	}
	return NoLayer, false
}

// RoutingAbove returns the next routing layer above id, or NoLayer.
func (t *Tech) RoutingAbove(id LayerID) LayerID {
	for i := int(id) + 1; i < len(t.Layers); i++ {
		if t.Layers[i].Kind == Routing {
			return LayerID(i)
		}
	}
	return NoLayer
}

// RoutingBelow returns the next routing layer below id, or NoLayer.
func (t *Tech) RoutingBelow(id LayerID) LayerID {
	for i := int(id) - 1; i >= 0; i-- {
		if t.Layers[i].Kind == Routing {
			return LayerID(i)
		}
	}
	return NoLayer
}

// RoutingOrdinal returns the 1-based position of a routing layer among the
// routing layers (M1 = 1). Cut layers report 0.
func (t *Tech) RoutingOrdinal(id LayerID) int {
	if !t.Valid(id) || t.Layers[id].Kind != Routing {
		return 0
	}
	n := 0
	for i := 0; i <= int(id); i++ {
		if t.Layers[i].Kind == Routing {
			n++
		}
	}
	return n
}

// TopRouting returns the highest routing layer, or NoLayer.
func (t *Tech) TopRouting() LayerID {
	for i := len(t.Layers) - 1; i >= 0; i-- {
		if t.Layers[i].Kind == Routing {
			return LayerID(i)
		}
	}
	return NoLayer
}

// ViasFrom returns the handles of via defs whose bottom layer is id.
func (t *Tech) ViasFrom(id LayerID) []int {
	var out []int
	for i := range t.Vias {
		if t.Vias[i].Bottom == id {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks handle consistency of the via library.
func (t *Tech) Validate() error {
	if len(t.Layers) == 0 {
		return fmt.Errorf("tech has no layers")
	}
	for i := range t.Layers {
		l := &t.Layers[i]
		if l.Kind == Routing && l.Pitch <= 0 {
			return fmt.Errorf("routing layer %s: pitch must be positive", l.Name)
		}
	}
	for i := range t.Vias {
		v := &t.Vias[i]
		if !t.Valid(v.Bottom) || !t.Valid(v.Top) || !t.Valid(v.CutL) {
			return fmt.Errorf("via %s: layer out of range", v.Name)
		}
		if t.Layers[v.Bottom].Kind != Routing || t.Layers[v.Top].Kind != Routing {
			return fmt.Errorf("via %s: bottom and top must be routing layers", v.Name)
		}
	}
	return nil
}

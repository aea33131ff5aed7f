package db

import (
	"fmt"
	"slices"

	"github.com/matzehuels/pinaccess/pkg/geom"
)

// Handles into Design slices.
type (
	MasterID int
	InstID   int
	NetID    int
	IOTermID int
)

// NoNet marks an unconnected terminal.
const NoNet NetID = -1

// TrackPattern is a regularly spaced set of routing coordinates on one
// layer. Horizontal tracks are lines of constant Y, so their coordinates are
// Y values; vertical tracks carry X values.
type TrackPattern struct {
	Layer LayerID   `json:"layer"`
	Dir   Direction `json:"dir"`
	Start int       `json:"start"`
	Step  int       `json:"step"`
	Count int       `json:"count"`
}

// Last returns the coordinate of the final track.
func (tp *TrackPattern) Last() int { return tp.Start + (tp.Count-1)*tp.Step }

// Coords returns the track coordinates inside the closed span [lo, hi].
func (tp *TrackPattern) Coords(lo, hi int) []int {
	if tp.Count <= 0 || tp.Step <= 0 || hi < tp.Start || lo > tp.Last() {
		return nil
	}
	first := 0
	if lo > tp.Start {
		first = (lo - tp.Start + tp.Step - 1) / tp.Step
	}
	var out []int
	for i := first; i < tp.Count; i++ {
		c := tp.Start + i*tp.Step
		if c > hi {
			break
		}
		out = append(out, c)
	}
	return out
}

// Nearest returns the closest track coordinate strictly below lo and strictly
// above hi. ok flags report whether each exists.
func (tp *TrackPattern) Nearest(lo, hi int) (below int, okBelow bool, above int, okAbove bool) {
	if tp.Count <= 0 || tp.Step <= 0 {
		return
	}
	if lo > tp.Start {
		i := min((lo-tp.Start-1)/tp.Step, tp.Count-1)
		below, okBelow = tp.Start+i*tp.Step, true
	}
	if hi < tp.Last() {
		i := 0
		if hi >= tp.Start {
			i = (hi-tp.Start)/tp.Step + 1
		}
		above, okAbove = tp.Start+i*tp.Step, true
	}
	return
}

// MasterClass is the LEF macro class relevant to pin access.
type MasterClass int

const (
	ClassCore MasterClass = iota
	ClassBlock
	ClassPad
)

// TermUse is the LEF pin USE.
type TermUse int

const (
	UseSignal TermUse = iota
	UseClock
	UsePower
	UseGround
)

// Shape is a rectangle on a layer.
type Shape struct {
	Layer LayerID   `json:"layer"`
	Rect  geom.Rect `json:"rect"`
}

// Pin is one physical pin of a terminal, possibly spread over layers.
type Pin struct {
	Shapes []Shape `json:"shapes"`
}

// Term is a master terminal.
type Term struct {
	Name string  `json:"name"`
	Use  TermUse `json:"use"`
	Pins []Pin   `json:"pins"`
}

// IsSignal reports whether the terminal needs routing access.
func (t *Term) IsSignal() bool { return t.Use == UseSignal || t.Use == UseClock }

// Master is a reusable cell template in master-local coordinates.
type Master struct {
	Name  string      `json:"name"`
	Class MasterClass `json:"class"`
	Size  geom.Point  `json:"size"`
	Terms []Term      `json:"terms"`
	Obs   []Shape     `json:"obs,omitempty"`
}

// PinLayerRange returns the lowest and highest routing layers carrying pin
// shapes. ok is false when the master has no pin on a routing layer.
func (m *Master) PinLayerRange(t *Tech) (lo, hi LayerID, ok bool) {
	lo, hi = NoLayer, NoLayer
	for _, term := range m.Terms {
		for _, pin := range term.Pins {
			for _, s := range pin.Shapes {
				if !t.Valid(s.Layer) || t.Layers[s.Layer].Kind != Routing {
					continue
				}
				if lo == NoLayer || s.Layer < lo {
					lo = s.Layer
				}
				if hi == NoLayer || s.Layer > hi {
					hi = s.Layer
				}
			}
		}
	}
	return lo, hi, lo != NoLayer
}

// Instance is a placed master.
type Instance struct {
	Name   string      `json:"name"`
	Master MasterID    `json:"master"`
	Origin geom.Point  `json:"origin"`
	Orient geom.Orient `json:"orient"`

	// PinAccessIdx selects which PinAccess set of the master's pins applies.
	PinAccessIdx int  `json:"-"`
	Removed      bool `json:"-"`
}

// TermRef names an instance terminal.
type TermRef struct {
	Inst InstID `json:"inst"`
	Term int    `json:"term"`
}

// Guide is a route guide rectangle of a net.
type Guide struct {
	Layer LayerID   `json:"layer"`
	Rect  geom.Rect `json:"rect"`
}

// Net connects instance terminals and IO terminals.
type Net struct {
	Name    string     `json:"name"`
	NDR     bool       `json:"ndr,omitempty"`
	Terms   []TermRef  `json:"terms"`
	IOTerms []IOTermID `json:"io_terms,omitempty"`
	Guides  []Guide    `json:"guides,omitempty"`
}

// IOTerm is a top-level block pin with absolute shapes.
type IOTerm struct {
	Name string `json:"name"`
	Net  NetID  `json:"net"`
	Pins []Pin  `json:"pins"`
}

// Design is the placed netlist plus its technology.
type Design struct {
	Name      string         `json:"name"`
	Tech      *Tech          `json:"tech"`
	Die       geom.Rect      `json:"die"`
	Tracks    []TrackPattern `json:"tracks"`
	Masters   []Master       `json:"masters"`
	Instances []Instance     `json:"instances"`
	Nets      []Net          `json:"nets"`
	IOTerms   []IOTerm       `json:"io_terms,omitempty"`

	termNets [][]NetID
}

// MasterOf returns the master of inst. ok is false for an unregistered master.
func (d *Design) MasterOf(inst InstID) (*Master, bool) {
	m := d.Instances[inst].Master
	if m < 0 || int(m) >= len(d.Masters) {
		return nil, false
	}
	return &d.Masters[m], true
}

// Transform returns the placement transform of inst.
func (d *Design) Transform(inst InstID) geom.Transform {
	in := &d.Instances[inst]
	var size geom.Point
	if m, ok := d.MasterOf(inst); ok {
		size = m.Size
	}
	return geom.Transform{Origin: in.Origin, Orient: in.Orient, Size: size}
}

// Box returns the placed bounding box of inst.
func (d *Design) Box(inst InstID) geom.Rect { return d.Transform(inst).Box() }

// Live returns the handles of all instances not marked removed, in order.
func (d *Design) Live() []InstID {
	out := make([]InstID, 0, len(d.Instances))
	for i := range d.Instances {
		if !d.Instances[i].Removed {
			out = append(out, InstID(i))
		}
	}
	return out
}

// InstByName looks up an instance handle by name.
func (d *Design) InstByName(name string) (InstID, bool) {
	for i := range d.Instances {
		if d.Instances[i].Name == name {
			return InstID(i), true
		}
	}
	return -1, false
}

// Index rebuilds the terminal-to-net table. It must be called after the
// netlist changes and before concurrent readers use TermNet.
func (d *Design) Index() {
	d.termNets = make([][]NetID, len(d.Instances))
	for i := range d.Instances {
		if m, ok := d.MasterOf(InstID(i)); ok {
			d.termNets[i] = slices.Repeat([]NetID{NoNet}, len(m.Terms))
		}
	}
	for n := range d.Nets {
		for _, ref := range d.Nets[n].Terms {
			if int(ref.Inst) < len(d.termNets) && ref.Term < len(d.termNets[ref.Inst]) {
				d.termNets[ref.Inst][ref.Term] = NetID(n)
			}
		}
	}
}

// TermNet returns the net connected to an instance terminal, or NoNet.
func (d *Design) TermNet(inst InstID, term int) NetID {
	if int(inst) >= len(d.termNets) || term >= len(d.termNets[inst]) {
		return NoNet
	}
	return d.termNets[inst][term]
}

// TermNets returns a copy of the nets on every terminal of inst, in
// terminal order.
func (d *Design) TermNets(inst InstID) []NetID {
	if int(inst) >= len(d.termNets) {
		return nil
	}
	return slices.Clone(d.termNets[inst])
}

// HasNDR reports whether any net on inst carries a non-default rule.
func (d *Design) HasNDR(inst InstID) bool {
	if int(inst) >= len(d.termNets) {
		return false
	}
	for _, n := range d.termNets[inst] {
		if n != NoNet && d.Nets[n].NDR {
			return true
		}
	}
	return false
}

// PrefTracks returns the track patterns running in their layer's preferred
// direction.
func (d *Design) PrefTracks() []*TrackPattern {
	var out []*TrackPattern
	for i := range d.Tracks {
		tp := &d.Tracks[i]
		if d.Tech.Valid(tp.Layer) && d.Tech.Layers[tp.Layer].Dir == tp.Dir {
			out = append(out, tp)
		}
	}
	return out
}

// TracksOn returns the track patterns on layer with orientation dir.
func (d *Design) TracksOn(layer LayerID, dir Direction) []*TrackPattern {
	var out []*TrackPattern
	for i := range d.Tracks {
		if d.Tracks[i].Layer == layer && d.Tracks[i].Dir == dir {
			out = append(out, &d.Tracks[i])
		}
	}
	return out
}

// Validate checks handle consistency across the design.
func (d *Design) Validate() error {
	if d.Tech == nil {
		return fmt.Errorf("design %s has no tech", d.Name)
	}
	if err := d.Tech.Validate(); err != nil {
		return err
	}
	for i := range d.Tracks {
		if !d.Tech.Valid(d.Tracks[i].Layer) {
			return fmt.Errorf("track pattern %d: layer out of range", i)
		}
	}
	for n := range d.Nets {
		for _, ref := range d.Nets[n].Terms {
			if ref.Inst < 0 || int(ref.Inst) >= len(d.Instances) {
				return fmt.Errorf("net %s: instance %d out of range", d.Nets[n].Name, ref.Inst)
			}
		}
	}
	return nil
}

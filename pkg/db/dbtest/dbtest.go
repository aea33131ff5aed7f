// Package dbtest builds small technologies and designs for tests.
//
// The default stack is three routing layers with a 200 DBU pitch:
//
//	M1 horizontal, tracks at y = 100 + 200k
//	M2 vertical,   tracks at x = 100 + 200k
//	M3 horizontal, tracks at y = 100 + 200k
//
// with single-cut vias V12 and V23. The INV master is 400 x 1400 with input
// A and output Y as vertical M1 strips, each crossed by one M2 track, plus
// power rails.
package dbtest

import (
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// Layer handles of the default stack.
const (
	M1 db.LayerID = 0
	V1 db.LayerID = 1
	M2 db.LayerID = 2
	V2 db.LayerID = 3
	M3 db.LayerID = 4
)

// Pitch is the track pitch of every routing layer.
const Pitch = 200

// Tech returns the default three-metal stack.
func Tech() *db.Tech {
	return &db.Tech{
		DBU: 1000,
		Layers: []db.Layer{
			{Name: "M1", Kind: db.Routing, Dir: db.Horizontal, Pitch: Pitch, Width: 70, Spacing: 70},
			{Name: "V1", Kind: db.Cut, Spacing: 80},
			{Name: "M2", Kind: db.Routing, Dir: db.Vertical, Pitch: Pitch, Width: 70, Spacing: 70},
			{Name: "V2", Kind: db.Cut, Spacing: 80},
			{Name: "M3", Kind: db.Routing, Dir: db.Horizontal, Pitch: Pitch, Width: 70, Spacing: 70},
		},
		Vias: []db.ViaDef{
			{
				Name: "V12", Bottom: M1, CutL: V1, Top: M2, NumCuts: 1, Default: true,
				BotRect: geom.Rect{XLo: -65, YLo: -35, XHi: 65, YHi: 35},
				CutRect: geom.Rect{XLo: -35, YLo: -35, XHi: 35, YHi: 35},
				TopRect: geom.Rect{XLo: -35, YLo: -65, XHi: 35, YHi: 65},
			},
			{
				Name: "V12_R", Bottom: M1, CutL: V1, Top: M2, NumCuts: 1,
				BotRect: geom.Rect{XLo: -35, YLo: -65, XHi: 35, YHi: 65},
				CutRect: geom.Rect{XLo: -35, YLo: -35, XHi: 35, YHi: 35},
				TopRect: geom.Rect{XLo: -35, YLo: -65, XHi: 35, YHi: 65},
			},
			{
				Name: "V23", Bottom: M2, CutL: V2, Top: M3, NumCuts: 1, Default: true,
				BotRect: geom.Rect{XLo: -35, YLo: -65, XHi: 35, YHi: 65},
				CutRect: geom.Rect{XLo: -35, YLo: -35, XHi: 35, YHi: 35},
				TopRect: geom.Rect{XLo: -65, YLo: -35, XHi: 65, YHi: 35},
			},
		},
	}
}

// Tracks returns preferred and non-preferred track patterns covering die.
func Tracks(die geom.Rect) []db.TrackPattern {
	nx := (die.Width())/Pitch + 1
	ny := (die.Height())/Pitch + 1
	return []db.TrackPattern{
		{Layer: M1, Dir: db.Horizontal, Start: die.YLo + 100, Step: Pitch, Count: ny},
		{Layer: M1, Dir: db.Vertical, Start: die.XLo + 100, Step: Pitch, Count: nx},
		{Layer: M2, Dir: db.Vertical, Start: die.XLo + 100, Step: Pitch, Count: nx},
		{Layer: M2, Dir: db.Horizontal, Start: die.YLo + 100, Step: Pitch, Count: ny},
		{Layer: M3, Dir: db.Horizontal, Start: die.YLo + 100, Step: Pitch, Count: ny},
		{Layer: M3, Dir: db.Vertical, Start: die.XLo + 100, Step: Pitch, Count: nx},
	}
}

// INV returns the inverter master.
func INV() db.Master {
	return db.Master{
		Name:  "INV",
		Class: db.ClassCore,
		Size:  geom.Pt(400, 1400),
		Terms: []db.Term{
			{Name: "A", Pins: []db.Pin{{Shapes: []db.Shape{{Layer: M1, Rect: geom.Rect{XLo: 65, YLo: 300, XHi: 135, YHi: 900}}}}}},
			{Name: "Y", Pins: []db.Pin{{Shapes: []db.Shape{{Layer: M1, Rect: geom.Rect{XLo: 265, YLo: 300, XHi: 335, YHi: 900}}}}}},
			{Name: "VDD", Use: db.UsePower, Pins: []db.Pin{{Shapes: []db.Shape{{Layer: M1, Rect: geom.Rect{XLo: 0, YLo: 1365, XHi: 400, YHi: 1435}}}}}},
			{Name: "VSS", Use: db.UseGround, Pins: []db.Pin{{Shapes: []db.Shape{{Layer: M1, Rect: geom.Rect{XLo: 0, YLo: -35, XHi: 400, YHi: 35}}}}}},
		},
	}
}

// BUF returns a two-pin buffer one track wider than INV.
func BUF() db.Master {
	m := INV()
	m.Name = "BUF"
	m.Size = geom.Pt(600, 1400)
	m.Terms[1].Pins[0].Shapes[0].Rect = geom.Rect{XLo: 465, YLo: 300, XHi: 535, YHi: 900}
	m.Terms[2].Pins[0].Shapes[0].Rect.XHi = 600
	m.Terms[3].Pins[0].Shapes[0].Rect.XHi = 600
	return m
}

// Builder assembles a design around the default tech.
type Builder struct {
	D *db.Design
}

// New starts a design with the default tech, tracks over die and the INV
// and BUF masters (handles 0 and 1).
func New(die geom.Rect) *Builder {
	return &Builder{D: &db.Design{
		Name:    "test",
		Tech:    Tech(),
		Die:     die,
		Tracks:  Tracks(die),
		Masters: []db.Master{INV(), BUF()},
	}}
}

// Master registers m and returns its handle.
func (b *Builder) Master(m db.Master) db.MasterID {
	b.D.Masters = append(b.D.Masters, m)
	return db.MasterID(len(b.D.Masters) - 1)
}

// Inst places master at (x, y) with orientation o and returns its handle.
func (b *Builder) Inst(name string, master db.MasterID, x, y int, o geom.Orient) db.InstID {
	b.D.Instances = append(b.D.Instances, db.Instance{Name: name, Master: master, Origin: geom.Pt(x, y), Orient: o})
	return db.InstID(len(b.D.Instances) - 1)
}

// Net adds a net connecting the given terminals and returns its handle.
func (b *Builder) Net(name string, terms ...db.TermRef) db.NetID {
	b.D.Nets = append(b.D.Nets, db.Net{Name: name, Terms: terms})
	return db.NetID(len(b.D.Nets) - 1)
}

// Build indexes connectivity and returns the design.
func (b *Builder) Build() *db.Design {
	b.D.Index()
	return b.D
}

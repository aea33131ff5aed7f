// Package access holds the value types shared by the pin-access stages:
// access points, per-pin access sets, instance patterns and the resolved
// assignment table handed to the detailed router.
//
// Access points of instance pins are stored relative to the instance origin.
// All members of a unique class share master, orientation and track offsets,
// so one set computed on the class representative applies to every member
// after translation by the member's origin.
package access

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// =============================================================================
// Cost
// =============================================================================

// Cost is the alignment quality of one access point coordinate. Lower values
// are preferred; the ordering doubles as a numeric cost.
type Cost int

const (
	OnGrid Cost = iota
	HalfGrid
	Center
	EncOpt
	NearbyGrid

	NumCosts
)

var costNames = [...]string{"OnGrid", "HalfGrid", "Center", "EncOpt", "NearbyGrid"}

func (c Cost) String() string {
	if c < 0 || c >= NumCosts {
		return fmt.Sprintf("Cost(%d)", int(c))
	}
	return costNames[c]
}

// =============================================================================
// Directions
// =============================================================================

// Dir is an access direction out of a point.
type Dir int

const (
	East Dir = iota
	West
	North
	South
	Up

	NumDirs
)

var dirNames = [...]string{"E", "W", "N", "S", "U"}

func (d Dir) String() string {
	if d < 0 || d >= NumDirs {
		return "?"
	}
	return dirNames[d]
}

// Planar lists the four in-layer directions.
var Planar = [...]Dir{East, West, North, South}

// DirSet is a bit set of legal directions.
type DirSet uint8

// AllPlanar has every in-layer direction set.
const AllPlanar DirSet = 1<<East | 1<<West | 1<<North | 1<<South

func (s DirSet) Has(d Dir) bool { return s&(1<<d) != 0 }
func (s DirSet) With(d Dir) DirSet { return s | 1<<d }
func (s DirSet) Without(d Dir) DirSet { return s &^ (1 << d) }
func (s DirSet) Any() bool { return s != 0 }
func (s DirSet) HasPlanar() bool { return s&AllPlanar != 0 }
func (s DirSet) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s DirSet) String() string {
	var b strings.Builder
	for d := East; d < NumDirs; d++ {
		if s.Has(d) {
			b.WriteString(d.String())
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// UnmarshalText parses the form produced by String.
func (s *DirSet) UnmarshalText(text []byte) error {
	*s = 0
	str := string(text)
	if str == "-" {
		return nil
	}
	for _, r := range str {
		i := slices.Index(dirNames[:], string(r))
		if i < 0 {
			return fmt.Errorf("access: bad direction %q", r)
		}
		*s = s.With(Dir(i))
	}
	return nil
}

// =============================================================================
// Access points
// =============================================================================

// Role classifies a pin for generation rules. The set is closed.
type Role int

const (
	RoleStdCell Role = iota
	RoleMacro
	RoleIO
)

func (r Role) String() string {
	switch r {
	case RoleStdCell:
		return "stdcell"
	case RoleMacro:
		return "macro"
	default:
		return "io"
	}
}

// RoleOf returns the role of a pin on master m.
func RoleOf(m *db.Master) Role {
	if m.Class == db.ClassCore {
		return RoleStdCell
	}
	return RoleMacro
}

// AccessPoint is a candidate contact location for one pin. It is immutable
// once generated.
type AccessPoint struct {
	// Point is relative to the instance origin, or absolute for IO pins.
	Point geom.Point `json:"point"`
	Layer db.LayerID `json:"layer"`
	// Lower is the quality of the coordinate taken from the pin layer's own
	// tracks, Upper that of the coordinate taken from the layer above.
	Lower Cost   `json:"lower"`
	Upper Cost   `json:"upper"`
	Dirs  DirSet `json:"dirs"`
	// Vias are via def handles usable for Up access, best first.
	Vias []int `json:"vias,omitempty"`
}

// Cost is the numeric preference of the point.
func (ap *AccessPoint) Cost() int { return int(ap.Lower) + 4*int(ap.Upper) }

// Via returns the preferred via def, or -1 without up access.
func (ap *AccessPoint) Via() int {
	if !ap.Dirs.Has(Up) || len(ap.Vias) == 0 {
		return -1
	}
	return ap.Vias[0]
}

func (ap AccessPoint) String() string {
	return fmt.Sprintf("%v L%d %v/%v %v", ap.Point, ap.Layer, ap.Lower, ap.Upper, ap.Dirs)
}

// PinAccess is the ordered set of access points of one pin under one
// pin-access index. Order is generation order: cheaper tiers first.
type PinAccess struct {
	Points []AccessPoint `json:"points"`
}

// Best returns the index of the cheapest point, or -1 when empty.
func (pa *PinAccess) Best() int {
	best := -1
	for i := range pa.Points {
		if best < 0 || pa.Points[i].Cost() < pa.Points[best].Cost() {
			best = i
		}
	}
	return best
}

// PinRef names one pin of a master.
type PinRef struct {
	Term int `json:"term"`
	Pin  int `json:"pin"`
}

func (r PinRef) String() string { return fmt.Sprintf("%d.%d", r.Term, r.Pin) }

// =============================================================================
// Patterns
// =============================================================================

// Pattern is one consistent choice of at most one access point per pin of
// an instance. Choice is indexed like the owning class's pin order and holds
// point indices into each pin's PinAccess, or -1 for a pin left unaccessed.
type Pattern struct {
	Choice []int `json:"choice"`
	// Left and Right are the positions of the boundary points with the
	// smallest and largest X, or -1 when no pin is accessed.
	Left  int `json:"left"`
	Right int `json:"right"`
	Cost  int `json:"cost"`
}

// Same reports whether both patterns choose the same points.
func (p *Pattern) Same(o *Pattern) bool { return slices.Equal(p.Choice, o.Choice) }

// Signature returns a comparable form of the choice vector.
func (p *Pattern) Signature() string {
	var b strings.Builder
	for i, c := range p.Choice {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", c)
	}
	return b.String()
}

// SetBoundary recomputes Left and Right from the chosen points.
func (p *Pattern) SetBoundary(order []PinRef, pins PinSet) {
	p.Left, p.Right = -1, -1
	var lx, rx int
	for pos, c := range p.Choice {
		if c < 0 {
			continue
		}
		x := pins[order[pos]].Points[c].Point.X
		if p.Left < 0 || x < lx {
			p.Left, lx = pos, x
		}
		if p.Right < 0 || x > rx {
			p.Right, rx = pos, x
		}
	}
}

// =============================================================================
// Resolved assignments
// =============================================================================

// Resolved is an access point placed in design coordinates and bound to a
// pin. It is what the detailed router consumes.
type Resolved struct {
	Inst  db.InstID   `json:"inst"`
	IO    db.IOTermID `json:"io"`
	Term  int         `json:"term"`
	Pin   int         `json:"pin"`
	Point geom.Point  `json:"point"`
	Layer db.LayerID  `json:"layer"`
	Dirs  DirSet      `json:"dirs"`
	Via   int         `json:"via"`
	Cost  int         `json:"cost"`
	// BestEffort marks points chosen without a pattern.
	BestEffort bool `json:"best_effort,omitempty"`
}

// Place resolves ap for pin ref of inst whose origin is origin.
func Place(inst db.InstID, ref PinRef, origin geom.Point, ap *AccessPoint) Resolved {
	return Resolved{
		Inst:  inst,
		IO:    -1,
		Term:  ref.Term,
		Pin:   ref.Pin,
		Point: ap.Point.Add(origin),
		Layer: ap.Layer,
		Dirs:  ap.Dirs,
		Via:   ap.Via(),
		Cost:  ap.Cost(),
	}
}

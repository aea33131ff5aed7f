package geom

import "fmt"

// Orient is one of the eight DEF placement orientations.
type Orient int

const (
	R0 Orient = iota
	R90
	R180
	R270
	MY
	MYR90
	MX
	MXR90
)

var orientNames = [...]string{"N", "W", "S", "E", "FN", "FW", "FS", "FE"}

func (o Orient) String() string {
	if o < 0 || int(o) >= len(orientNames) {
		return fmt.Sprintf("Orient(%d)", int(o))
	}
	return orientNames[o]
}

// ParseOrient accepts DEF names (N, S, FN, ...) and the R0/MX style aliases.
func ParseOrient(s string) (Orient, error) {
	switch s {
	case "N", "R0", "":
		return R0, nil
	case "W", "R90":
		return R90, nil
	case "S", "R180":
		return R180, nil
	case "E", "R270":
		return R270, nil
	case "FN", "MY":
		return MY, nil
	case "FW", "MYR90":
		return MYR90, nil
	case "FS", "MX":
		return MX, nil
	case "FE", "MXR90":
		return MXR90, nil
	}
	return R0, fmt.Errorf("unknown orientation %q", s)
}

// Transform places master-local geometry into the design. Following DEF,
// Origin is the lower-left corner of the placed bounding box, not the image
// of the master origin.
type Transform struct {
	Origin Point
	Orient Orient
	// Size is the master width and height before orientation.
	Size Point
}

// apply maps a master-local point to the oriented frame before translation.
func (t Transform) apply(p Point) Point {
	w, h := t.Size.X, t.Size.Y
	switch t.Orient {
	case R90:
		return Point{h - p.Y, p.X}
	case R180:
		return Point{w - p.X, h - p.Y}
	case R270:
		return Point{p.Y, w - p.X}
	case MY:
		return Point{w - p.X, p.Y}
	case MYR90:
		return Point{h - p.Y, w - p.X}
	case MX:
		return Point{p.X, h - p.Y}
	case MXR90:
		return Point{p.Y, p.X}
	}
	return p
}

// Point maps a master-local point into design coordinates.
func (t Transform) Point(p Point) Point {
	return t.apply(p).Add(t.Origin)
}

// Rect maps a master-local rectangle into design coordinates.
func (t Transform) Rect(r Rect) Rect {
	a := t.Point(Point{r.XLo, r.YLo})
	b := t.Point(Point{r.XHi, r.YHi})
	return R(a.X, a.Y, b.X, b.Y)
}

// Box returns the placed bounding box of the master.
func (t Transform) Box() Rect {
	return t.Rect(Rect{0, 0, t.Size.X, t.Size.Y})
}

// MarshalText encodes the DEF name.
func (o Orient) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText accepts any name understood by ParseOrient.
func (o *Orient) UnmarshalText(b []byte) error {
	v, err := ParseOrient(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

package access

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

func TestAccessPointCost(t *testing.T) {
	tests := []struct {
		lower, upper Cost
		want         int
	}{
		{OnGrid, OnGrid, 0},
		{HalfGrid, OnGrid, 1},
		{OnGrid, HalfGrid, 4},
		{Center, EncOpt, 14},
		{NearbyGrid, NearbyGrid, 20},
	}
	for _, tt := range tests {
		ap := AccessPoint{Lower: tt.lower, Upper: tt.upper}
		if got := ap.Cost(); got != tt.want {
			t.Errorf("Cost(%v/%v) = %d, want %d", tt.lower, tt.upper, got, tt.want)
		}
	}
}

func TestAccessPointVia(t *testing.T) {
	tests := []struct {
		name string
		ap   AccessPoint
		want int
	}{
		{"up with vias", AccessPoint{Dirs: DirSet(0).With(Up), Vias: []int{2, 0}}, 2},
		{"up without vias", AccessPoint{Dirs: DirSet(0).With(Up)}, -1},
		{"planar only", AccessPoint{Dirs: AllPlanar, Vias: []int{1}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ap.Via(); got != tt.want {
				t.Errorf("Via() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPinAccessBest(t *testing.T) {
	pa := PinAccess{Points: []AccessPoint{
		{Lower: Center},
		{Lower: OnGrid, Upper: HalfGrid},
		{Lower: HalfGrid},
		{Lower: HalfGrid},
	}}
	// Ties keep the earlier point.
	if got := pa.Best(); got != 2 {
		t.Errorf("Best() = %d, want 2", got)
	}
	if got := (&PinAccess{}).Best(); got != -1 {
		t.Errorf("Best() on empty = %d, want -1", got)
	}
}

func TestDirSetText(t *testing.T) {
	tests := []struct {
		set  DirSet
		text string
	}{
		{0, "-"},
		{AllPlanar, "EWNS"},
		{DirSet(0).With(Up), "U"},
		{DirSet(0).With(North).With(Up), "NU"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := tt.set.String(); got != tt.text {
				t.Errorf("String() = %q, want %q", got, tt.text)
			}
			var back DirSet
			if err := back.UnmarshalText([]byte(tt.text)); err != nil {
				t.Fatalf("UnmarshalText(%q) error: %v", tt.text, err)
			}
			if back != tt.set {
				t.Errorf("UnmarshalText(%q) = %v, want %v", tt.text, back, tt.set)
			}
		})
	}

	var s DirSet
	if err := s.UnmarshalText([]byte("EX")); err == nil {
		t.Error("UnmarshalText(EX) should fail")
	}
}

func TestDirSetOps(t *testing.T) {
	s := AllPlanar.Without(East).With(Up)
	if s.Has(East) || !s.Has(West) || !s.Has(Up) {
		t.Errorf("set = %v", s)
	}
	if !s.HasPlanar() || !s.Any() {
		t.Error("set should have planar directions")
	}
	if DirSet(0).With(Up).HasPlanar() {
		t.Error("up-only set has no planar direction")
	}
}

func TestPatternBoundary(t *testing.T) {
	order := []PinRef{{Term: 0}, {Term: 1}, {Term: 2}}
	pins := PinSet{
		{Term: 0}: {Points: []AccessPoint{{Point: geom.Pt(100, 0)}, {Point: geom.Pt(50, 0)}}},
		{Term: 1}: {Points: []AccessPoint{{Point: geom.Pt(300, 0)}}},
		{Term: 2}: {Points: []AccessPoint{{Point: geom.Pt(200, 0)}}},
	}
	tests := []struct {
		name        string
		choice      []int
		left, right int
	}{
		{"all pins", []int{1, 0, 0}, 0, 1},
		{"first unaccessed", []int{-1, 0, 0}, 2, 1},
		{"single pin", []int{-1, -1, 0}, 2, 2},
		{"none", []int{-1, -1, -1}, -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Pattern{Choice: tt.choice}
			p.SetBoundary(order, pins)
			if p.Left != tt.left || p.Right != tt.right {
				t.Errorf("boundary = (%d, %d), want (%d, %d)", p.Left, p.Right, tt.left, tt.right)
			}
		})
	}
}

func TestPatternSignature(t *testing.T) {
	a := Pattern{Choice: []int{0, -1, 2}}
	b := Pattern{Choice: []int{0, -1, 2}, Cost: 9}
	if a.Signature() != "0,-1,2" {
		t.Errorf("Signature() = %q", a.Signature())
	}
	if !a.Same(&b) {
		t.Error("patterns with equal choices should be the same")
	}
}

func TestPlace(t *testing.T) {
	ap := AccessPoint{
		Point: geom.Pt(300, 500),
		Layer: 2,
		Lower: HalfGrid,
		Dirs:  DirSet(0).With(Up),
		Vias:  []int{4},
	}
	got := Place(7, PinRef{Term: 1, Pin: 0}, geom.Pt(1000, 2000), &ap)
	want := Resolved{Inst: 7, IO: -1, Term: 1, Point: geom.Pt(1300, 2500), Layer: 2, Dirs: ap.Dirs, Via: 4, Cost: 1}
	if got != want {
		t.Errorf("Place() = %+v, want %+v", got, want)
	}
}

func TestResolvedJSON(t *testing.T) {
	r := Resolved{Inst: 1, IO: -1, Term: 2, Point: geom.Pt(5, 6), Dirs: AllPlanar, Via: -1}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var back Resolved
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != r {
		t.Errorf("round trip = %+v, want %+v", back, r)
	}
}

func TestStore(t *testing.T) {
	s := NewStore()
	m := db.MasterID(3)

	i0, i1 := s.Alloc(m), s.Alloc(m)
	if i0 != 0 || i1 != 1 || s.Indices(m) != 2 {
		t.Fatalf("Alloc() = %d, %d; Indices() = %d", i0, i1, s.Indices(m))
	}

	ps := PinSet{{Term: 0}: {Points: []AccessPoint{{}, {}}}, {Term: 1}: {Points: []AccessPoint{{}}}}
	s.Put(m, i1, ps)
	if got := s.Get(m, i1); got.Points() != 3 {
		t.Errorf("Get().Points() = %d, want 3", got.Points())
	}
	if s.Get(m, i0) != nil || s.Get(m, 9) != nil || s.Get(7, 0) != nil {
		t.Error("unset slots should be nil")
	}

	s.Release(m, i1)
	if s.Get(m, i1) != nil {
		t.Error("released slot should be nil")
	}
	if got := s.Alloc(m); got != 2 {
		t.Errorf("Alloc() after Release = %d, want 2 (indices are not reused)", got)
	}

	s.PutIO(0, &PinAccess{Points: []AccessPoint{{}}})
	if pa, ok := s.IO(0); !ok || len(pa.Points) != 1 {
		t.Error("IO(0) missing")
	}
	if _, ok := s.IO(1); ok {
		t.Error("IO(1) should be missing")
	}
}

func TestPinSetRefs(t *testing.T) {
	ps := PinSet{{Term: 2}: nil, {Term: 0, Pin: 1}: nil, {Term: 0}: nil}
	want := []PinRef{{Term: 0}, {Term: 0, Pin: 1}, {Term: 2}}
	if got := ps.Refs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Refs() = %v, want %v", got, want)
	}
}

func TestTable(t *testing.T) {
	tb := NewTable(2)
	tb.Set(1, []Resolved{{Inst: 1, Term: 0}, {Inst: 1, Term: 1}})
	tb.Grow(3)
	tb.Set(2, []Resolved{{Inst: 2}})
	tb.SetIO(1, Resolved{Inst: -1, IO: 1})
	tb.SetIO(0, Resolved{Inst: -1, IO: 0})

	if got := len(tb.All()); got != 3 {
		t.Errorf("len(All()) = %d, want 3", got)
	}
	if got := tb.Covered(); got != 2 {
		t.Errorf("Covered() = %d, want 2", got)
	}
	if io := tb.IO(); len(io) != 2 || io[0].IO != 0 || io[1].IO != 1 {
		t.Errorf("IO() = %+v, want handle order", io)
	}

	tb.Clear(1)
	if tb.Get(1) != nil || tb.Covered() != 1 {
		t.Error("Clear(1) did not forget the instance")
	}
	if tb.Get(9) != nil {
		t.Error("Get() past the end should be nil")
	}
}

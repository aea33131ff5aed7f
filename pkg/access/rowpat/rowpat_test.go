package rowpat

import (
	"context"
	"testing"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

type entry struct {
	order []access.PinRef
	pats  []access.Pattern
	pins  access.PinSet
}

// fakeSrc serves fixed patterns per instance.
type fakeSrc map[db.InstID]entry

func (f fakeSrc) PatternsOf(inst db.InstID) ([]access.PinRef, []access.Pattern, access.PinSet, bool) {
	e, ok := f[inst]
	if !ok || len(e.pats) == 0 {
		return nil, nil, nil, false
	}
	return e.order, e.pats, e.pins, true
}

// onePin gives inst a single pin on term with one point per y at x, and one
// pattern per point costing cost.
func onePin(term, x, cost int, ys ...int) entry {
	ref := access.PinRef{Term: term}
	pa := &access.PinAccess{}
	e := entry{order: []access.PinRef{ref}, pins: access.PinSet{ref: pa}}
	for i, y := range ys {
		pa.Points = append(pa.Points, access.AccessPoint{Point: geom.Pt(x, y), Layer: dbtest.M1, Dirs: access.AllPlanar})
		e.pats = append(e.pats, access.Pattern{Choice: []int{i}, Left: 0, Right: 0, Cost: cost})
	}
	return e
}

var clean = drc.OracleFunc(func(ctx context.Context, req drc.Request) (drc.Result, error) {
	return drc.Result{}, nil
})

// pair places two inverters in one row, the second at x.
func pair(x int) (*db.Design, db.InstID, db.InstID) {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	u1 := b.Inst("u1", 0, 0, 0, geom.R0)
	u2 := b.Inst("u2", 0, x, 0, geom.R0)
	return b.Build(), u1, u2
}

func TestEdgeCost(t *testing.T) {
	tests := []struct {
		name    string
		x       int // origin of the second instance; INV is 400 wide
		eps     int
		pa, pb  int
		want    int
	}{
		// Track escalation needs a real gap between the boxes. Abutting
		// instances keep the plain edge cost even with a tolerance set.
		{"abutting, same track", 400, 400, 0, 0, 2},
		{"no tolerance, same track", 600, 0, 0, 0, 2},
		{"gap, same track", 600, 400, 0, 0, ViolationCost},
		{"gap, adjacent track", 600, 400, 0, 1, 4},
		{"gap, distant track", 600, 400, 0, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, u1, u2 := pair(tt.x)
			src := fakeSrc{
				u1: onePin(1, 300, 2, 300),
				u2: onePin(0, 100, 2, 300, 500, 900),
			}
			s := New(d, clean, src, Options{Epsilon: tt.eps})
			got, err := s.EdgeCost(context.Background(), u1, tt.pa, u2, tt.pb)
			if err != nil {
				t.Fatalf("EdgeCost error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EdgeCost() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEdgeCostDirtyBoundary(t *testing.T) {
	d, u1, u2 := pair(400)
	src := fakeSrc{
		u1: onePin(1, 300, 2, 300),
		u2: onePin(0, 100, 2, 300),
	}
	dirty := drc.OracleFunc(func(ctx context.Context, req drc.Request) (drc.Result, error) {
		return drc.Result{Markers: []drc.Marker{{Rule: "spacing"}}}, nil
	})
	got, err := New(d, dirty, src, Options{}).EdgeCost(context.Background(), u1, 0, u2, 0)
	if err != nil {
		t.Fatalf("EdgeCost error: %v", err)
	}
	if got != ViolationCost {
		t.Errorf("EdgeCost() = %d, want %d", got, ViolationCost)
	}
}

func TestSolveAvoidsSharedTrack(t *testing.T) {
	d, u1, u2 := pair(600)
	src := fakeSrc{
		u1: onePin(1, 300, 2, 300),
		// The same-track pattern is the cheapest one in isolation.
		u2: onePin(0, 100, 0, 300, 900),
	}
	src[u2].pats[1].Cost = 40
	s := New(d, clean, src, Options{Epsilon: 400})
	row := Row{Insts: []db.InstID{u1, u2}}

	var st Stats
	choice, err := s.Solve(context.Background(), row, &st)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if choice[1] != 1 {
		t.Errorf("choice = %v, want the pattern off the shared track", choice)
	}
	if st.TrackEdges != 1 || st.Rows != 1 || st.Instances != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSolveTotality(t *testing.T) {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	src := fakeSrc{}
	var row Row
	for i := 0; i < 4; i++ {
		inst := b.Inst("u", 0, 400*i, 0, geom.R0)
		src[inst] = onePin(0, 100, i, 300, 500)
		row.Insts = append(row.Insts, inst)
	}
	d := b.Build()
	dirty := drc.OracleFunc(func(ctx context.Context, req drc.Request) (drc.Result, error) {
		return drc.Result{Markers: []drc.Marker{{Rule: "any"}}}, nil
	})
	choice, err := New(d, dirty, src, Options{}).Solve(context.Background(), row, nil)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	if len(choice) != len(row.Insts) {
		t.Fatalf("len(choice) = %d, want %d", len(choice), len(row.Insts))
	}
	for i, c := range choice {
		if c < 0 || c > 1 {
			t.Errorf("choice[%d] = %d out of range", i, c)
		}
	}
}

func TestSolveNoPath(t *testing.T) {
	d, u1, u2 := pair(400)
	src := fakeSrc{u1: onePin(1, 300, 0, 300)}
	_, err := New(d, clean, src, Options{}).Solve(context.Background(), Row{ID: 7, Insts: []db.InstID{u1, u2}}, nil)
	if !errors.Is(err, errors.ErrCodeNoRowPath) {
		t.Fatalf("Solve() error = %v, want %s", err, errors.ErrCodeNoRowPath)
	}
	if !errors.IsFatal(err) {
		t.Errorf("error %v should be fatal", err)
	}
}

func TestCommit(t *testing.T) {
	d, u1, u2 := pair(400)
	src := fakeSrc{
		u1: onePin(1, 300, 0, 300, 500),
		u2: onePin(0, 100, 0, 700),
	}
	s := New(d, clean, src, Options{})
	row := Row{Insts: []db.InstID{u1, u2}}
	table := access.NewTable(len(d.Instances))
	if err := s.SolveAndCommit(context.Background(), row, table, nil); err != nil {
		t.Fatalf("SolveAndCommit error: %v", err)
	}
	got := table.Get(u2)
	if len(got) != 1 {
		t.Fatalf("len(Get(u2)) = %d, want 1", len(got))
	}
	if got[0].Point != geom.Pt(500, 700) || got[0].Inst != u2 || got[0].Term != 0 {
		t.Errorf("Get(u2) = %+v, want term 0 at (500 700)", got[0])
	}
	if table.Covered() != 2 {
		t.Errorf("Covered() = %d, want 2", table.Covered())
	}
}

func TestBuildRows(t *testing.T) {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	u1 := b.Inst("u1", 0, 0, 0, geom.R0)
	u2 := b.Inst("u2", 0, 400, 0, geom.R0)
	u3 := b.Inst("u3", 0, 1200, 0, geom.R0)
	u4 := b.Inst("u4", 0, 0, 1400, geom.R0)
	u5 := b.Inst("u5", 0, 800, 0, geom.R0) // no patterns
	d := b.Build()
	src := fakeSrc{}
	for _, inst := range []db.InstID{u1, u2, u3, u4} {
		src[inst] = onePin(0, 100, 0, 300)
	}

	tests := []struct {
		eps  int
		want [][]db.InstID
	}{
		{0, [][]db.InstID{{u1, u2}, {u3}, {u4}}},
		{400, [][]db.InstID{{u1, u2, u3}, {u4}}},
	}
	for _, tt := range tests {
		rows := BuildRows(d, src, tt.eps)
		if len(rows) != len(tt.want) {
			t.Fatalf("eps %d: BuildRows() = %v, want %v", tt.eps, rows, tt.want)
		}
		for i, r := range rows {
			if r.ID != i {
				t.Errorf("eps %d: rows[%d].ID = %d", tt.eps, i, r.ID)
			}
			if len(r.Insts) != len(tt.want[i]) {
				t.Errorf("eps %d: rows[%d] = %v, want %v", tt.eps, i, r.Insts, tt.want[i])
				continue
			}
			for j := range r.Insts {
				if r.Insts[j] == u5 || r.Insts[j] != tt.want[i][j] {
					t.Errorf("eps %d: rows[%d] = %v, want %v", tt.eps, i, r.Insts, tt.want[i])
					break
				}
			}
		}
	}
}

func TestAround(t *testing.T) {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	var sorted []db.InstID
	for _, x := range []int{0, 400, 800, 1600, 2000} {
		sorted = append(sorted, b.Inst("u", 0, x, 0, geom.R0))
	}
	d := b.Build()
	if lo, hi := Around(d, sorted, 1, 0); lo != 0 || hi != 3 {
		t.Errorf("Around(1) = [%d, %d), want [0, 3)", lo, hi)
	}
	if lo, hi := Around(d, sorted, 4, 0); lo != 3 || hi != 5 {
		t.Errorf("Around(4) = [%d, %d), want [3, 5)", lo, hi)
	}
	if lo, hi := Around(d, sorted, 4, 400); lo != 0 || hi != 5 {
		t.Errorf("Around(4, eps) = [%d, %d), want [0, 5)", lo, hi)
	}
}

func TestEstimate(t *testing.T) {
	d, _, _ := pair(400)
	pin := geom.R(0, 300, 100, 400)
	far := db.Guide{Layer: dbtest.M3, Rect: geom.R(1000, 0, 1200, 200)}
	near := db.Guide{Layer: dbtest.M1, Rect: geom.R(0, 0, 200, 200)}
	stacked := db.Guide{Layer: dbtest.M2, Rect: near.Rect}

	tests := []struct {
		name   string
		mode   GuideMode
		guides []db.Guide
		want   geom.Point
	}{
		{"centroid", GuideCentroid, []db.Guide{near, far}, geom.Pt(600, 100)},
		{"layer weighted", GuideLayerWeighted, []db.Guide{near, far}, geom.Pt(850, 100)},
		{"nearest", GuideNearest, []db.Guide{near, stacked, far}, geom.Pt(100, 100)},
		{"nearest non-via", GuideNearestNonVia, []db.Guide{near, stacked, far}, geom.Pt(1100, 100)},
		{"nearest non-via fallback", GuideNearestNonVia, []db.Guide{near, stacked}, geom.Pt(100, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := estimate(d, tt.mode, tt.guides, pin)
			if !ok || got != tt.want {
				t.Errorf("estimate() = %v, %v, want %v", got, ok, tt.want)
			}
		})
	}
	if _, ok := estimate(d, GuideOff, []db.Guide{near}, pin); ok {
		t.Error("estimate() with guides off should report no target")
	}
}

func TestPenalty(t *testing.T) {
	tech := dbtest.Tech()
	pin := geom.R(0, 300, 100, 400)
	target := geom.Pt(100, 100)
	tests := []struct {
		p    geom.Point
		want int
	}{
		{geom.Pt(100, 300), 0},
		{geom.Pt(100, 700), 20},
		{geom.Pt(100, 2000), MaxGuidePenalty},
	}
	for _, tt := range tests {
		if got := penalty(tech, dbtest.M1, tt.p, target, pin); got != tt.want {
			t.Errorf("penalty(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestGuidePenaltyRaisesNodeCost(t *testing.T) {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	u1 := b.Inst("u1", 0, 0, 0, geom.R0)
	b.Net("n", db.TermRef{Inst: u1, Term: 0})
	d := b.Build()
	d.Nets[0].Guides = []db.Guide{{Layer: dbtest.M1, Rect: geom.R(0, 0, 200, 200)}}

	src := fakeSrc{u1: onePin(0, 100, 0, 300, 900)}
	s := New(d, clean, src, Options{Guide: GuideCentroid})
	ns, err := s.nodes(u1)
	if err != nil {
		t.Fatalf("nodes error: %v", err)
	}
	// The A pin spans y 300..900, so only the far point pays.
	if ns[0].cost != 0 || ns[1].cost != 30 {
		t.Errorf("node costs = %d, %d, want 0, 30", ns[0].cost, ns[1].cost)
	}
}

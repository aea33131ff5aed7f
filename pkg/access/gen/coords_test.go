package gen

import (
	"context"
	"reflect"
	"testing"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

func TestCoords(t *testing.T) {
	tracks := []*db.TrackPattern{{Start: 100, Step: 200, Count: 5}}
	enc := []span{{-65, 65}, {-35, 35}}

	tests := []struct {
		name   string
		lo, hi int
		policy access.Cost
		enc    []span
		want   []int
	}{
		{"on grid", 250, 550, access.OnGrid, nil, []int{300, 500}},
		{"on grid none", 320, 480, access.OnGrid, nil, nil},
		{"half grid", 250, 550, access.HalfGrid, nil, []int{400}},
		{"half grid first gap", 150, 250, access.HalfGrid, nil, []int{200}},
		{"half grid past last track", 950, 1050, access.HalfGrid, nil, nil},
		{"center without track", 320, 480, access.Center, nil, []int{400}},
		{"center one track", 250, 350, access.Center, nil, []int{300}},
		{"center two tracks", 250, 550, access.Center, nil, nil},
		{"enclosure aligned", 200, 400, access.EncOpt, enc, []int{235, 265, 335, 365}},
		{"enclosure without vias", 200, 400, access.EncOpt, nil, nil},
		{"nearby grid", 320, 480, access.NearbyGrid, nil, []int{300, 500}},
		{"nearby grid before first", 0, 50, access.NearbyGrid, nil, []int{100}},
		{"nearby grid after last", 950, 1050, access.NearbyGrid, nil, []int{900}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coords(tracks, tt.lo, tt.hi, tt.policy, tt.enc); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("coords(%d, %d, %v) = %v, want %v", tt.lo, tt.hi, tt.policy, got, tt.want)
			}
		})
	}
}

// offGridDesign is singleLayerDesign with the pin moved between tracks in
// both directions.
func offGridDesign() *db.Design {
	d := singleLayerDesign()
	d.Masters[0].Terms[0].Pins[0].Shapes[0].Rect = geom.R(20, 140, 80, 180)
	return d
}

func TestOffGridPinUsesCenter(t *testing.T) {
	d := offGridDesign()
	opts := DefaultOptions()
	opts.ViaAccessLayer = 0
	var st Stats

	pa, err := New(d, drc.NewSpacingChecker(d.Tech), opts).Generate(context.Background(), InstPin(d, 0, pinA), &st)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(pa.Points) != 1 {
		t.Fatalf("len(Points) = %d, want 1: %v", len(pa.Points), pa.Points)
	}
	ap := pa.Points[0]
	if ap.Point != geom.Pt(50, 160) || ap.Lower != access.Center || ap.Upper != access.Center {
		t.Errorf("point = %v %v/%v, want (50 160) Center/Center", ap.Point, ap.Lower, ap.Upper)
	}
	// A legal regular point keeps the nearby tiers from running.
	for l := range access.NumCosts {
		if st.ByCost[l][access.NearbyGrid] != 0 || st.ByCost[access.NearbyGrid][l] != 0 {
			t.Errorf("nearby points counted: %v", st.ByCost)
		}
	}
}

func TestNearbyGridLastResort(t *testing.T) {
	d := offGridDesign()
	opts := DefaultOptions()
	opts.ViaAccessLayer = 0

	// Wires centred on the pin's own off-grid coordinates are rejected, so
	// only points snapped to a nearby track survive.
	oracle := drc.OracleFunc(func(ctx context.Context, req drc.Request) (drc.Result, error) {
		for _, f := range req.Figures {
			r := f.Rect
			if (r.YLo+r.YHi)/2 == 160 || (r.XLo+r.XHi)/2 == 50 {
				return drc.Result{Markers: []drc.Marker{{Rule: "offgrid", Layer: f.Layer, Rect: r}}}, nil
			}
		}
		return drc.Result{}, nil
	})

	pa, err := New(d, oracle, opts).Generate(context.Background(), InstPin(d, 0, pinA), nil)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(pa.Points) == 0 {
		t.Fatal("no points")
	}
	first := pa.Points[0]
	if first.Point != geom.Pt(50, 100) || first.Lower != access.NearbyGrid || first.Upper != access.Center {
		t.Errorf("first point = %v %v/%v, want (50 100) NearbyGrid/Center", first.Point, first.Lower, first.Upper)
	}
	for _, ap := range pa.Points {
		if ap.Lower != access.NearbyGrid && ap.Upper != access.NearbyGrid {
			t.Errorf("%v: %v/%v is not a nearby point", ap.Point, ap.Lower, ap.Upper)
		}
	}
}

func TestPlanarDirs(t *testing.T) {
	horizontal := access.AllPlanar.Without(access.North).Without(access.South)
	vertical := access.AllPlanar.Without(access.East).Without(access.West)

	tests := []struct {
		name      string
		layer     db.LayerID
		role      access.Role
		rectOnly  bool
		rightWay  bool
		viaAccess int
		tier      tier
		want      access.DirSet
	}{
		{"macro unrestricted", dbtest.M1, access.RoleMacro, false, false, 0, tier{access.HalfGrid, access.OnGrid}, access.AllPlanar},
		{"rect only", dbtest.M1, access.RoleMacro, true, false, 0, tier{access.HalfGrid, access.OnGrid}, horizontal},
		{"right way on grid", dbtest.M1, access.RoleMacro, false, true, 0, tier{access.OnGrid, access.HalfGrid}, horizontal},
		{"right way off grid", dbtest.M1, access.RoleMacro, false, true, 0, tier{access.HalfGrid, access.OnGrid}, 0},
		{"right way vertical", dbtest.M2, access.RoleMacro, false, true, 0, tier{access.OnGrid, access.Center}, vertical},
		{"std cell via access layer", dbtest.M1, access.RoleStdCell, false, false, 1, tier{access.OnGrid, access.OnGrid}, 0},
		{"std cell above via access layer", dbtest.M2, access.RoleStdCell, false, false, 1, tier{access.OnGrid, access.OnGrid}, access.AllPlanar},
		{"io ignores via access layer", dbtest.M1, access.RoleIO, false, false, 1, tier{access.OnGrid, access.OnGrid}, access.AllPlanar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := dbtest.New(geom.R(0, 0, 1000, 1400)).Build()
			d.Tech.Layers[tt.layer].RectOnly = tt.rectOnly
			d.Tech.Layers[tt.layer].RightWayOnGridOnly = tt.rightWay
			opts := DefaultOptions()
			opts.ViaAccessLayer = tt.viaAccess
			g := New(d, nil, opts)

			pc := &pinCtx{target: Target{Role: tt.role}}
			if got := g.planarDirs(pc, tt.layer, tt.tier); got != tt.want {
				t.Errorf("planarDirs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpAllowed(t *testing.T) {
	tests := []struct {
		max  int
		want [3]bool // M1, M2, M3
	}{
		{0, [3]bool{true, true, false}},
		{1, [3]bool{true, false, false}},
		{2, [3]bool{true, true, false}},
	}
	for _, tt := range tests {
		d := dbtest.New(geom.R(0, 0, 1000, 1400)).Build()
		opts := DefaultOptions()
		opts.MaxViaAccessLayer = tt.max
		g := New(d, nil, opts)
		for i, l := range []db.LayerID{dbtest.M1, dbtest.M2, dbtest.M3} {
			if got := g.upAllowed(l); got != tt.want[i] {
				t.Errorf("max %d: upAllowed(%d) = %v, want %v", tt.max, l, got, tt.want[i])
			}
		}
	}
}

func TestViaAccessCap(t *testing.T) {
	d, inst := macroDesign(false)
	// A second shape on M2 gives the pin a tier where up access is possible.
	pin := &d.Masters[d.Instances[inst].Master].Terms[0].Pins[0]
	pin.Shapes = append(pin.Shapes,
		db.Shape{Layer: dbtest.M2, Rect: geom.R(65, 300, 135, 900)})
	opts := DefaultOptions()
	opts.MaxViaAccessLayer = 1

	pa, err := New(d, drc.NewSpacingChecker(d.Tech), opts).Generate(context.Background(), InstPin(d, inst, pinA), nil)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	for _, ap := range pa.Points {
		if ap.Layer == dbtest.M2 && (ap.Dirs.Has(access.Up) || len(ap.Vias) > 0) {
			t.Errorf("%v on M2: up access above the via access cap", ap.Point)
		}
	}
}

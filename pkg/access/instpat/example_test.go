package instpat_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/instpat"
	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

func ExampleSolver_Solve() {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	inst := b.Inst("u1", 0, 0, 0, geom.R0)
	d := b.Build()

	// Two pins with three stacked candidate points each.
	column := func(x int) *access.PinAccess {
		pa := &access.PinAccess{}
		for _, y := range []int{300, 500, 700} {
			pa.Points = append(pa.Points, access.AccessPoint{Point: geom.Pt(x, y), Layer: dbtest.M1, Dirs: access.AllPlanar})
		}
		return pa
	}
	pins := access.PinSet{{Term: 0}: column(100), {Term: 1}: column(300)}

	clean := drc.OracleFunc(func(ctx context.Context, req drc.Request) (drc.Result, error) {
		return drc.Result{}, nil
	})
	sol, err := instpat.New(d, clean, instpat.Options{}).Solve(context.Background(), instpat.Problem{Inst: inst, Pins: pins}, nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, p := range sol.Patterns {
		fmt.Println(p.Choice)
	}
	// Output:
	// [0 0]
	// [1 1]
	// [2 2]
}

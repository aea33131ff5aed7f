package rowpat_test

import (
	"fmt"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/rowpat"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// everyInst gives each instance one pattern with a single point.
type everyInst struct{}

func (everyInst) PatternsOf(db.InstID) ([]access.PinRef, []access.Pattern, access.PinSet, bool) {
	ref := access.PinRef{}
	pins := access.PinSet{ref: {Points: []access.AccessPoint{{Point: geom.Pt(100, 300), Layer: dbtest.M1}}}}
	return []access.PinRef{ref}, []access.Pattern{{Choice: []int{0}}}, pins, true
}

func ExampleBuildRows() {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	b.Inst("u1", 0, 0, 0, geom.R0)
	b.Inst("u2", 0, 400, 0, geom.R0)  // abuts u1
	b.Inst("u3", 0, 1200, 0, geom.R0) // 400 DBU gap
	b.Inst("u4", 0, 0, 1400, geom.R0) // next row
	d := b.Build()

	for _, eps := range []int{0, 400} {
		fmt.Println("epsilon", eps)
		for _, r := range rowpat.BuildRows(d, everyInst{}, eps) {
			fmt.Println(r.ID, r.Insts)
		}
	}
	// Output:
	// epsilon 0
	// 0 [0 1]
	// 1 [2]
	// 2 [3]
	// epsilon 400
	// 0 [0 1 2]
	// 1 [3]
}

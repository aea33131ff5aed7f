package unique_test

import (
	"fmt"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/unique"
	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

func ExampleClassifier_Classify() {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	i0 := b.Inst("i0", 0, 0, 0, geom.R0)
	i1 := b.Inst("i1", 0, 400, 0, geom.R0) // same track offsets as i0
	i2 := b.Inst("i2", 0, 900, 0, geom.R0) // shifted against the vertical tracks
	d := b.Build()

	c := unique.New(d, access.NewStore(), unique.Options{})
	if _, err := c.Classify(); err != nil {
		fmt.Println(err)
		return
	}

	c0, _ := c.ClassOf(i0)
	c1, _ := c.ClassOf(i1)
	c2, _ := c.ClassOf(i2)
	fmt.Println("classes:", len(c.Classes()))
	fmt.Println("i0 and i1 share a class:", c0.ID == c1.ID)
	fmt.Println("i0 and i2 share a class:", c0.ID == c2.ID)
	// Output:
	// classes: 2
	// i0 and i1 share a class: true
	// i0 and i2 share a class: false
}

package pipeline_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/drc"
	"github.com/matzehuels/pinaccess/pkg/geom"
	"github.com/matzehuels/pinaccess/pkg/pipeline"
)

func ExampleRunner_Run() {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	b.Inst("u1", 0, 0, 0, geom.R0)
	b.Inst("u2", 0, 400, 0, geom.R0)
	b.Inst("u3", 0, 2000, 0, geom.R0)
	d := b.Build()

	clean := drc.OracleFunc(func(ctx context.Context, req drc.Request) (drc.Result, error) {
		return drc.Result{}, nil
	})
	opts := pipeline.DefaultOptions()
	opts.Threads = 2

	// A nil cache disables caching and a nil logger discards output.
	r, err := pipeline.NewRunner(d, clean, opts, nil, nil, nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer r.Close()

	res, err := r.Run(context.Background(), nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("classes:", len(res.Classes))
	fmt.Println("rows:", len(res.Rows))
	fmt.Println("assigned pins:", len(res.Assignments))
	// Output:
	// classes: 1
	// rows: 2
	// assigned pins: 6
}

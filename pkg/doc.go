// Package pkg provides the core libraries for pinaccess pin access planning.
//
// # Overview
//
// Before detailed routing, every signal pin of a placed design needs a legal
// point where a router can connect to it. pinaccess computes candidate access
// points per pin, picks a compatible combination per instance, then per row of
// abutting instances, and keeps the result current when placement changes.
//
// The typical data flow:
//
//	design JSON
//	     ↓
//	[io] (import, validate, index)
//	     ↓
//	[access/unique] (group instances into unique classes)
//	     ↓
//	[access/gen] (access points per pin of each class representative)
//	     ↓
//	[access/instpat] (intra-instance access patterns)
//	     ↓
//	[access/rowpat] (one pattern per instance along each row cluster)
//	     ↓
//	[batch] / assignments JSON
//
// After the initial plan, [access/incr] applies placement moves and re-plans
// only the classes and row clusters they touch.
//
// # Quick Start
//
//	d, _ := io.ImportDesign("design.json")
//	r, _ := pipeline.NewRunner(d, drc.NewSpacingChecker(d.Tech), pipeline.DefaultOptions(), nil, nil, logger)
//	res, _ := r.Run(ctx, nil)
//	_ = io.ExportAssignments(d, res.Assignments, "assign.json")
//
//	// Later, after placement moves:
//	rep, _ := r.ECO(ctx, moves)
//
// # Packages
//
// Data model:
//
//   - [geom]: points, rectangles, the eight placement orientations
//   - [db]: technology, tracks, masters, instances, nets and block terminals
//   - [drc]: the legality oracle contract and a reference spacing checker
//
// Planning:
//
//   - [access]: access points, patterns and the assignment table
//   - [access/unique], [access/gen], [access/instpat], [access/rowpat], [access/incr]
//
// Infrastructure:
//
//   - [pipeline]: options, worker pool and the stage runner
//   - [cache]: class result cache (file, Redis, null)
//   - [batch]: per-row export of resolved points (JSON lines, MongoDB)
//   - [observability]: planning and cache hooks with a Prometheus implementation
//   - [errors]: structured error codes separating fatal and soft failures
//
// [geom]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/geom
// [db]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/db
// [drc]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/drc
// [io]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/io
// [access]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/access
// [access/unique]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/access/unique
// [access/gen]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/access/gen
// [access/instpat]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/access/instpat
// [access/rowpat]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/access/rowpat
// [access/incr]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/access/incr
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/cache
// [batch]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/batch
// [observability]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/pinaccess/pkg/errors
package pkg

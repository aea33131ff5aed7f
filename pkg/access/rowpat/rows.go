package rowpat

import (
	"slices"

	"github.com/matzehuels/pinaccess/pkg/db"
)

// Row is a cluster of instances sharing a row, left to right. Consecutive
// members abut or are separated by at most the abutment tolerance.
type Row struct {
	ID    int         `json:"id"`
	Insts []db.InstID `json:"insts"`
}

// Sorted returns the live instances of d that have patterns, ordered by the
// bottom then the left edge of their boxes.
func Sorted(d *db.Design, src Patterns) []db.InstID {
	var out []db.InstID
	for _, inst := range d.Live() {
		if _, _, _, ok := src.PatternsOf(inst); ok {
			out = append(out, inst)
		}
	}
	slices.SortStableFunc(out, func(a, b db.InstID) int {
		ba, bb := d.Box(a), d.Box(b)
		if ba.YLo != bb.YLo {
			return ba.YLo - bb.YLo
		}
		return ba.XLo - bb.XLo
	})
	return out
}

// Adjacent reports whether b directly follows a in a row: same bottom edge
// and a horizontal gap of at most eps.
func Adjacent(d *db.Design, a, b db.InstID, eps int) bool {
	ba, bb := d.Box(a), d.Box(b)
	return ba.YLo == bb.YLo && bb.XLo-ba.XHi <= eps
}

// Around returns the cluster of sorted containing position i as the half
// open range [lo, hi), walking outward while neighbours stay adjacent.
func Around(d *db.Design, sorted []db.InstID, i, eps int) (lo, hi int) {
	lo, hi = i, i+1
	for lo > 0 && Adjacent(d, sorted[lo-1], sorted[lo], eps) {
		lo--
	}
	for hi < len(sorted) && Adjacent(d, sorted[hi-1], sorted[hi], eps) {
		hi++
	}
	return lo, hi
}

// BuildRows splits the position-sorted instances into disjoint clusters.
// It is a single sequential pass and must finish before rows are solved.
func BuildRows(d *db.Design, src Patterns, eps int) []Row {
	sorted := Sorted(d, src)
	var rows []Row
	for i := 0; i < len(sorted); {
		_, hi := Around(d, sorted, i, eps)
		rows = append(rows, Row{ID: len(rows), Insts: slices.Clone(sorted[i:hi])})
		i = hi
	}
	return rows
}

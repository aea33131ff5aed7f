package geom

import (
	"slices"
)

// MaxRects decomposes the union of rects into its maximal rectangles: every
// rectangle fully covered by the union that cannot be grown on any side
// without leaving it. Touching inputs are merged, so two abutting boxes of the
// same height yield one rectangle spanning both.
//
// The union is rasterized on the compressed coordinate grid of the input
// edges. Pin shapes have a handful of boxes per layer, so the O(n^4) sweep
// over column spans stays small.
func MaxRects(rects []Rect) []Rect {
	var in []Rect
	for _, r := range rects {
		if !r.Empty() {
			in = append(in, r)
		}
	}
	switch len(in) {
	case 0:
		return nil
	case 1:
		return []Rect{in[0]}
	}

	xs := edges(in, func(r Rect) (int, int) { return r.XLo, r.XHi })
	ys := edges(in, func(r Rect) (int, int) { return r.YLo, r.YHi })

	// covered[i][j]: the closed cell [xs[i],xs[i+1]] x [ys[j],ys[j+1]] is inside the union.
	nx, ny := len(xs)-1, len(ys)-1
	if nx == 0 || ny == 0 {
		return degenerate(in)
	}
	covered := make([][]bool, nx)
	for i := range covered {
		covered[i] = make([]bool, ny)
		for j := range covered[i] {
			cell := Rect{xs[i], ys[j], xs[i+1], ys[j+1]}
			for _, r := range in {
				if r.ContainsRect(cell) {
					covered[i][j] = true
					break
				}
			}
		}
	}

	var out []Rect
	colOK := make([]bool, ny)
	for i := 0; i < nx; i++ {
		for j := range colOK {
			colOK[j] = true
		}
		for k := i; k < nx; k++ {
			hit := false
			for j := 0; j < ny; j++ {
				colOK[j] = colOK[j] && covered[k][j]
				hit = hit || colOK[j]
			}
			if !hit {
				break
			}
			for j := 0; j < ny; {
				if !colOK[j] {
					j++
					continue
				}
				s := j
				for j < ny && colOK[j] {
					j++
				}
				out = append(out, Rect{xs[i], ys[s], xs[k+1], ys[j]})
			}
		}
	}
	out = pruneContained(out)
	// Zero-area input shapes (pin segments) never cover a cell; keep them if
	// nothing else swallowed them.
	for _, r := range in {
		if r.Area() > 0 {
			continue
		}
		inside := false
		for _, o := range out {
			if o.ContainsRect(r) {
				inside = true
				break
			}
		}
		if !inside {
			out = append(out, r)
		}
	}
	sortRects(out)
	return out
}

func edges(rects []Rect, f func(Rect) (int, int)) []int {
	vs := make([]int, 0, 2*len(rects))
	for _, r := range rects {
		lo, hi := f(r)
		vs = append(vs, lo, hi)
	}
	slices.Sort(vs)
	return slices.Compact(vs)
}

func degenerate(in []Rect) []Rect {
	out := pruneContained(slices.Clone(in))
	sortRects(out)
	return out
}

func pruneContained(rs []Rect) []Rect {
	sortRects(rs)
	rs = slices.Compact(rs)
	var out []Rect
	for i, r := range rs {
		contained := false
		for j, o := range rs {
			if i != j && o != r && o.ContainsRect(r) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, r)
		}
	}
	return out
}

func sortRects(rs []Rect) {
	slices.SortFunc(rs, func(a, b Rect) int {
		switch {
		case a.XLo != b.XLo:
			return a.XLo - b.XLo
		case a.YLo != b.YLo:
			return a.YLo - b.YLo
		case a.XHi != b.XHi:
			return a.XHi - b.XHi
		}
		return a.YHi - b.YHi
	})
}

package layout

import (
	xp "github.com/BurntSushi/xgb/xproto"
)

// Rect is an integer window geometry in root-window coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Params holds the tunable inputs of the master/stack algorithm.
type Params struct {
	MasterCount int
	MasterRatio float64
}

const (
	// MinRatio and MaxRatio bound MasterRatio so that neither column can
	// collapse to zero width.
	MinRatio = 0.05
	MaxRatio = 0.95
)

// ClampRatio restricts a master ratio to the [MinRatio, MaxRatio] interval.
func ClampRatio(ratio float64) float64 {
	if ratio < MinRatio {
		return MinRatio
	}
	if ratio > MaxRatio {
		return MaxRatio
	}
	return ratio
}

// Compute assigns a rectangle inside area to every window in order using the
// master/stack algorithm: the first Params.MasterCount windows share a left
// column of MasterRatio*width, the rest share the right column. Each column
// stacks its windows evenly, with the integer remainder absorbed by the last
// window so the column always fills the area exactly.
//
// Compute is pure: identical inputs produce identical output, and the input
// slice is never mutated.
func Compute(order []xp.Window, params Params, area Rect) map[xp.Window]Rect {
	rects := make(map[xp.Window]Rect, len(order))
	n := len(order)
	if n == 0 {
		return rects
	}

	masters := params.MasterCount
	if masters < 0 {
		masters = 0
	}
	if masters > n {
		masters = n
	}
	ratio := ClampRatio(params.MasterRatio)

	masterWidth := area.Width
	if masters > 0 && masters < n {
		masterWidth = int(float64(area.Width) * ratio)
	}

	if masters > 0 {
		column(rects, order[:masters], Rect{
			X:      area.X,
			Y:      area.Y,
			Width:  masterWidth,
			Height: area.Height,
		})
	}
	if masters < n {
		stack := Rect{
			X:      area.X,
			Y:      area.Y,
			Width:  area.Width,
			Height: area.Height,
		}
		if masters > 0 {
			stack.X = area.X + masterWidth
			stack.Width = area.Width - masterWidth
		}
		column(rects, order[masters:], stack)
	}
	return rects
}

// column stacks wins top to bottom inside col, giving the height remainder to
// the last window.
func column(rects map[xp.Window]Rect, wins []xp.Window, col Rect) {
	n := len(wins)
	each := col.Height / n
	y := col.Y
	for i, w := range wins {
		h := each
		if i == n-1 {
			h = col.Y + col.Height - y
		}
		rects[w] = Rect{X: col.X, Y: y, Width: col.Width, Height: h}
		y += h
	}
}

// Placement pairs a window with the geometry it should take on.
type Placement struct {
	Window xp.Window
	Rect   Rect
}

// Diff returns the placements from next that differ from prev, ordered by the
// provided window order. Windows present only in prev produce no placement;
// the caller decides whether to unmap them.
func Diff(prev, next map[xp.Window]Rect, order []xp.Window) []Placement {
	var changed []Placement
	for _, w := range order {
		rect, ok := next[w]
		if !ok {
			continue
		}
		if old, ok := prev[w]; ok && old == rect {
			continue
		}
		changed = append(changed, Placement{Window: w, Rect: rect})
	}
	return changed
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Rect) bool {
	return inner.X >= outer.X && inner.Y >= outer.Y &&
		inner.X+inner.Width <= outer.X+outer.Width &&
		inner.Y+inner.Height <= outer.Y+outer.Height
}

// Overlaps reports whether a and b share any interior area. Rectangles that
// only touch along an edge do not overlap.
func Overlaps(a, b Rect) bool {
	return a.X < b.X+b.Width && b.X < a.X+a.Width &&
		a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
}

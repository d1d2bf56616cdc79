package state

import (
	xp "github.com/BurntSushi/xgb/xproto"

	"github.com/tidewm/tidewm/internal/layout"
)

// Client is one managed top-level window. The window handle is owned by the
// X server; the registry only treats it as an opaque key.
type Client struct {
	Window      xp.Window
	Geometry    layout.Rect
	BorderWidth int
	Tags        uint32

	Floating   bool
	Urgent     bool
	NeverFocus bool

	// WM_PROTOCOLS participation discovered at manage time.
	WMDeleteWindow bool
	WMTakeFocus    bool
}

// Registry owns the set of managed clients in insertion order. Insertion
// order is what the master/stack layout keys off, so it must stay stable
// across unrelated add/remove operations.
type Registry struct {
	order []xp.Window
	byWin map[xp.Window]*Client
}

// NewRegistry returns an empty client registry.
func NewRegistry() *Registry {
	return &Registry{byWin: make(map[xp.Window]*Client)}
}

// Len reports the number of managed clients.
func (r *Registry) Len() int {
	return len(r.order)
}

// Add starts managing a client. The caller supplies the initial tag mask,
// which must be non-zero. Returns ErrAlreadyManaged if the handle is present.
func (r *Registry) Add(c Client) (*Client, error) {
	if _, ok := r.byWin[c.Window]; ok {
		return nil, ErrAlreadyManaged
	}
	if c.Tags == 0 {
		return nil, ErrWouldOrphanClient
	}
	stored := c
	r.byWin[c.Window] = &stored
	r.order = append(r.order, c.Window)
	return &stored, nil
}

// Remove stops managing a window. Removing an unknown handle is a no-op; the
// second return value reports whether anything was removed.
func (r *Registry) Remove(win xp.Window) (Client, bool) {
	c, ok := r.byWin[win]
	if !ok {
		return Client{}, false
	}
	delete(r.byWin, win)
	for i, w := range r.order {
		if w == win {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *c, true
}

// Get returns the client for win, or nil if it is not managed.
func (r *Registry) Get(win xp.Window) *Client {
	return r.byWin[win]
}

// MoveToFront makes win the first client in insertion order, which promotes
// it to the master slot on the next layout pass. Unknown handles are ignored.
func (r *Registry) MoveToFront(win xp.Window) {
	if _, ok := r.byWin[win]; !ok {
		return
	}
	for i, w := range r.order {
		if w == win {
			copy(r.order[1:i+1], r.order[:i])
			r.order[0] = win
			return
		}
	}
}

// Visible returns the handles of non-floating clients whose tags intersect
// mask, in insertion order. This is the exact input set of the tiler.
func (r *Registry) Visible(mask uint32) []xp.Window {
	var wins []xp.Window
	for _, w := range r.order {
		c := r.byWin[w]
		if c.Floating {
			continue
		}
		if c.Tags&mask != 0 {
			wins = append(wins, w)
		}
	}
	return wins
}

// OnTags returns all handles (floating included) whose tags intersect mask,
// in insertion order. Used for map/unmap visibility decisions.
func (r *Registry) OnTags(mask uint32) []xp.Window {
	var wins []xp.Window
	for _, w := range r.order {
		if r.byWin[w].Tags&mask != 0 {
			wins = append(wins, w)
		}
	}
	return wins
}

// All returns every managed handle in insertion order.
func (r *Registry) All() []xp.Window {
	return append([]xp.Window(nil), r.order...)
}

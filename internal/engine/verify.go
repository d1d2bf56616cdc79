package engine

import (
	"encoding/json"
	"fmt"

	xp "github.com/BurntSushi/xgb/xproto"

	"github.com/tidewm/tidewm/internal/layout"
)

// verify checks the structural invariants after an event and panics with a
// state dump on the first violation. Enabled by the -strict flag; the cost
// is quadratic in the client count, so it stays off in normal use.
func (e *Engine) verify() {
	view := e.tags.View()

	for _, win := range e.registry.All() {
		if e.registry.Get(win).Tags == 0 {
			e.fail(fmt.Sprintf("client %d has no tags", win))
		}
	}

	wins := e.registry.Visible(view)
	for i, a := range wins {
		ra, ok := e.assigned[a]
		if !ok {
			e.fail(fmt.Sprintf("visible tiled client %d has no assigned geometry", a))
		}
		if !layout.Contains(e.area, ra) {
			e.fail(fmt.Sprintf("client %d assigned %+v outside area %+v", a, ra, e.area))
		}
		for _, b := range wins[i+1:] {
			if layout.Overlaps(ra, e.assigned[b]) {
				e.fail(fmt.Sprintf("clients %d and %d overlap", a, b))
			}
		}
	}

	if cur := e.focus.Current(); cur != 0 {
		c := e.registry.Get(cur)
		if c == nil {
			e.fail(fmt.Sprintf("focused window %d is not managed", cur))
		}
		if c.Tags&view == 0 {
			e.fail(fmt.Sprintf("focused window %d is not visible", cur))
		}
		if c.NeverFocus {
			e.fail(fmt.Sprintf("focused window %d declines input focus", cur))
		}
	}

	stack := e.focus.Stack()
	if len(stack) != e.registry.Len() {
		e.fail(fmt.Sprintf("focus history has %d entries for %d clients", len(stack), e.registry.Len()))
	}
	seen := make(map[xp.Window]bool, len(stack))
	for _, w := range stack {
		if seen[w] {
			e.fail(fmt.Sprintf("focus history lists %d twice", w))
		}
		seen[w] = true
		if e.registry.Get(w) == nil {
			e.fail(fmt.Sprintf("focus history lists unmanaged window %d", w))
		}
	}
}

func (e *Engine) fail(msg string) {
	dump, err := json.MarshalIndent(e.statusLocked(), "", "  ")
	if err != nil {
		dump = []byte(err.Error())
	}
	panic(fmt.Sprintf("invariant violated: %s\nstate: %s", msg, dump))
}

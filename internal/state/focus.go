package state

import (
	xp "github.com/BurntSushi/xgb/xproto"
)

// Focus tracks the input-focus history of managed clients. The stack holds
// every managed window exactly once, most recently focused first; it is the
// fallback order when the focused client disappears or the view changes.
type Focus struct {
	stack   []xp.Window
	current xp.Window
}

// NewFocus returns an empty focus history.
func NewFocus() *Focus {
	return &Focus{}
}

// Current returns the focused window, or 0 when nothing is focused.
func (f *Focus) Current() xp.Window {
	return f.current
}

// Stack returns the focus history, most recently focused first.
func (f *Focus) Stack() []xp.Window {
	return append([]xp.Window(nil), f.stack...)
}

// OnAdded records a newly managed client. It lands on top of the history and
// becomes the focused client when it is visible and focusable.
func (f *Focus) OnAdded(c *Client, view uint32) {
	f.remove(c.Window)
	f.stack = append([]xp.Window{c.Window}, f.stack...)
	if c.Tags&view != 0 && !c.NeverFocus {
		f.current = c.Window
	}
}

// OnRemoved drops a window from the history. If it was focused, focus falls
// to the most recently used client that is still visible and focusable, or
// to none. The new focus (0 for none) is returned.
func (f *Focus) OnRemoved(win xp.Window, reg *Registry, view uint32) xp.Window {
	f.remove(win)
	if f.current != win {
		return f.current
	}
	f.current = f.candidate(reg, view)
	return f.current
}

// SetCurrent makes win the focused client and moves it to the top of the
// history. Windows not in the history are ignored, guarding against focus
// instructions racing with removal.
func (f *Focus) SetCurrent(win xp.Window) {
	if !f.contains(win) {
		return
	}
	f.remove(win)
	f.stack = append([]xp.Window{win}, f.stack...)
	f.current = win
}

// Refocus re-validates the focused client against the current view, falling
// back to the most recently used candidate when it is no longer visible.
// Returns the (possibly unchanged) focused window.
func (f *Focus) Refocus(reg *Registry, view uint32) xp.Window {
	if c := reg.Get(f.current); c != nil && c.Tags&view != 0 && !c.NeverFocus {
		return f.current
	}
	f.current = f.candidate(reg, view)
	return f.current
}

// Next returns the client after the focused one among the visible focusable
// clients, wrapping around; 0 when there are no candidates. The visible
// sequence is the registry's stable insertion order, so cycling walks the
// same order the layout displays.
func (f *Focus) Next(reg *Registry, view uint32) xp.Window {
	return f.cycle(reg, view, 1)
}

// Prev is Next in the opposite direction.
func (f *Focus) Prev(reg *Registry, view uint32) xp.Window {
	return f.cycle(reg, view, -1)
}

func (f *Focus) cycle(reg *Registry, view uint32, dir int) xp.Window {
	var candidates []xp.Window
	for _, w := range reg.OnTags(view) {
		if !reg.Get(w).NeverFocus {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return 0
	}
	at := -1
	for i, w := range candidates {
		if w == f.current {
			at = i
			break
		}
	}
	if at == -1 {
		return candidates[0]
	}
	n := len(candidates)
	return candidates[(at+dir+n)%n]
}

// candidate returns the most recently used window that is visible and
// focusable, or 0.
func (f *Focus) candidate(reg *Registry, view uint32) xp.Window {
	for _, w := range f.stack {
		c := reg.Get(w)
		if c == nil {
			continue
		}
		if c.Tags&view != 0 && !c.NeverFocus {
			return w
		}
	}
	return 0
}

func (f *Focus) contains(win xp.Window) bool {
	for _, w := range f.stack {
		if w == win {
			return true
		}
	}
	return false
}

func (f *Focus) remove(win xp.Window) {
	for i, w := range f.stack {
		if w == win {
			f.stack = append(f.stack[:i], f.stack[i+1:]...)
			return
		}
	}
}

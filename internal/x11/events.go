package x11

import (
	xp "github.com/BurntSushi/xgb/xproto"

	"github.com/tidewm/tidewm/internal/layout"
)

// Event is one display-server notification, already classified into the
// small vocabulary the window manager cares about. The set is sealed so the
// dispatcher's type switch stays exhaustive.
type Event interface {
	isEvent()
}

// MapRequest asks the window manager to decide whether to manage and show a
// new top-level window.
type MapRequest struct {
	Window xp.Window
}

// Destroyed reports that a window ceased to exist.
type Destroyed struct {
	Window xp.Window
}

// Unmapped reports that a window was withdrawn from the screen.
type Unmapped struct {
	Window xp.Window
}

// ConfigureRequest carries a client's own geometry wishes. The original
// value mask and stacking fields are preserved so an ungranted request can
// be passed through verbatim.
type ConfigureRequest struct {
	Window      xp.Window
	Rect        layout.Rect
	BorderWidth int
	ValueMask   uint16
	Sibling     xp.Window
	StackMode   byte
}

// Entered reports the pointer crossing into a window.
type Entered struct {
	Window xp.Window
	Time   xp.Timestamp
}

// Key reports a grabbed key chord. Keysym is the unshifted symbol for the
// pressed keycode; Mods is the raw modifier state at press time.
type Key struct {
	Mods   uint16
	Keysym xp.Keysym
	Time   xp.Timestamp
}

// ScreenChange reports a new root work area, e.g. after monitor
// reconfiguration.
type ScreenChange struct {
	Area layout.Rect
}

func (MapRequest) isEvent()       {}
func (Destroyed) isEvent()        {}
func (Unmapped) isEvent()         {}
func (ConfigureRequest) isEvent() {}
func (Entered) isEvent()          {}
func (Key) isEvent()              {}
func (ScreenChange) isEvent()     {}

package x11

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xinerama"
	xp "github.com/BurntSushi/xgb/xproto"

	"github.com/tidewm/tidewm/internal/layout"
	"github.com/tidewm/tidewm/internal/util"
)

// ErrAnotherWM is returned when the root window's substructure-redirect bit
// is already owned, i.e. a window manager is running on this display.
var ErrAnotherWM = errors.New("could not become the window manager: is another one running?")

const urgencyHintBit = 1 << 8 // XUrgencyHint in WM_HINTS flags

// Chord is a grabbed key combination.
type Chord struct {
	Mods   uint16
	Keysym xp.Keysym
}

// WindowInfo is everything the manage-or-ignore decision needs to know about
// a window, gathered in one round trip burst.
type WindowInfo struct {
	Geometry         layout.Rect
	BorderWidth      int
	OverrideRedirect bool
	Viewable         bool
	Transient        bool
	Dock             bool
	NeverFocus       bool
	Urgent           bool
	WMDeleteWindow   bool
	WMTakeFocus      bool
}

// Conn owns the X connection and translates between the wire protocol and
// the event/instruction vocabulary of the window manager core.
type Conn struct {
	xc     *xgb.Conn
	root   xp.Window
	screen xp.ScreenInfo
	logger *util.Logger

	atomWMProtocols    xp.Atom
	atomWMDeleteWindow xp.Atom
	atomWMTakeFocus    xp.Atom
	atomNetWindowType  xp.Atom
	atomNetTypeDock    xp.Atom

	haveXinerama bool

	mu      sync.Mutex
	keysyms [256][2]xp.Keysym
	readErr error
}

// Connect opens the display, claims window management of the (single) root
// window, and loads the keyboard mapping. The returned Conn is ready for
// GrabKeys, AdoptExisting, and Events.
func Connect(logger *util.Logger) (*Conn, error) {
	xc, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to display: %w", err)
	}
	setup := xp.Setup(xc)
	if len(setup.Roots) != 1 {
		xc.Close()
		return nil, fmt.Errorf("unsupported number of X screens: %d", len(setup.Roots))
	}
	c := &Conn{
		xc:     xc,
		root:   setup.Roots[0].Root,
		screen: setup.Roots[0],
		logger: logger,
	}

	if err := xp.ChangeWindowAttributesChecked(xc, c.root, xp.CwEventMask, []uint32{
		xp.EventMaskSubstructureRedirect |
			xp.EventMaskSubstructureNotify |
			xp.EventMaskStructureNotify,
	}).Check(); err != nil {
		xc.Close()
		if _, ok := err.(xp.AccessError); ok {
			return nil, ErrAnotherWM
		}
		return nil, fmt.Errorf("select root events: %w", err)
	}

	if err := xinerama.Init(xc); err != nil {
		logger.Debugf("xinerama unavailable: %v", err)
	} else {
		c.haveXinerama = true
	}

	if err := c.initAtoms(); err != nil {
		xc.Close()
		return nil, err
	}
	if err := c.loadKeyboardMapping(); err != nil {
		xc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) initAtoms() error {
	intern := func(name string) (xp.Atom, error) {
		r, err := xp.InternAtom(c.xc, false, uint16(len(name)), name).Reply()
		if err != nil {
			return 0, fmt.Errorf("intern atom %s: %w", name, err)
		}
		return r.Atom, nil
	}
	var err error
	if c.atomWMProtocols, err = intern("WM_PROTOCOLS"); err != nil {
		return err
	}
	if c.atomWMDeleteWindow, err = intern("WM_DELETE_WINDOW"); err != nil {
		return err
	}
	if c.atomWMTakeFocus, err = intern("WM_TAKE_FOCUS"); err != nil {
		return err
	}
	if c.atomNetWindowType, err = intern("_NET_WM_WINDOW_TYPE"); err != nil {
		return err
	}
	if c.atomNetTypeDock, err = intern("_NET_WM_WINDOW_TYPE_DOCK"); err != nil {
		return err
	}
	return nil
}

func (c *Conn) loadKeyboardMapping() error {
	const keyLo, keyHi = 8, 255
	km, err := xp.GetKeyboardMapping(c.xc, keyLo, keyHi-keyLo+1).Reply()
	if err != nil {
		return fmt.Errorf("load keyboard mapping: %w", err)
	}
	n := int(km.KeysymsPerKeycode)
	if n < 2 {
		return fmt.Errorf("too few keysyms per keycode: %d", n)
	}
	c.mu.Lock()
	for i := keyLo; i <= keyHi; i++ {
		c.keysyms[i][0] = km.Keysyms[(i-keyLo)*n+0]
		c.keysyms[i][1] = km.Keysyms[(i-keyLo)*n+1]
	}
	c.mu.Unlock()
	return nil
}

// WorkArea returns the rectangle layouts should fill: the first xinerama
// screen when available, the whole root window otherwise.
func (c *Conn) WorkArea() layout.Rect {
	if c.haveXinerama {
		if r, err := xinerama.QueryScreens(c.xc).Reply(); err == nil && len(r.ScreenInfo) > 0 {
			si := r.ScreenInfo[0]
			return layout.Rect{
				X:      int(si.XOrg),
				Y:      int(si.YOrg),
				Width:  int(si.Width),
				Height: int(si.Height),
			}
		}
	}
	return layout.Rect{
		Width:  int(c.screen.WidthInPixels),
		Height: int(c.screen.HeightInPixels),
	}
}

// ignoredMods are the lock modifiers (Caps Lock, NumLock) that must not
// change what a chord means. Grabs cover every combination and key events
// are reported with these bits stripped.
const ignoredMods = uint16(xp.ModMaskLock | xp.ModMask2)

// GrabKeys replaces the grabbed chord set on the root window. Each chord is
// grabbed with and without the Lock and NumLock modifiers so Caps Lock does
// not shadow bindings.
func (c *Conn) GrabKeys(chords []Chord) error {
	if err := xp.UngrabKeyChecked(c.xc, 0, c.root, xp.ModMaskAny).Check(); err != nil {
		return fmt.Errorf("ungrab keys: %w", err)
	}
	for _, chord := range chords {
		keycode := c.keycodeFor(chord.Keysym)
		if keycode == 0 {
			c.logger.Warnf("no keycode for keysym %#x; binding unavailable", chord.Keysym)
			continue
		}
		for _, extra := range []uint16{0, xp.ModMaskLock, xp.ModMask2, xp.ModMaskLock | xp.ModMask2} {
			if err := xp.GrabKeyChecked(c.xc, false, c.root, chord.Mods|extra, keycode,
				xp.GrabModeAsync, xp.GrabModeAsync).Check(); err != nil {
				return fmt.Errorf("grab key %#x: %w", chord.Keysym, err)
			}
		}
	}
	return nil
}

func (c *Conn) keycodeFor(keysym xp.Keysym) xp.Keycode {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, k := range c.keysyms {
		if k[0] == keysym || k[1] == keysym {
			return xp.Keycode(i)
		}
	}
	return 0
}

// AdoptExisting lists the mapped, non-override-redirect top-level windows
// already present at startup, oldest first, so they can be managed as if
// they had just issued map requests.
func (c *Conn) AdoptExisting() ([]xp.Window, error) {
	tree, err := xp.QueryTree(c.xc, c.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("query window tree: %w", err)
	}
	var wins []xp.Window
	for _, child := range tree.Children {
		attrs, err := xp.GetWindowAttributes(c.xc, child).Reply()
		if err != nil {
			continue
		}
		if attrs.OverrideRedirect || attrs.MapState != xp.MapStateViewable {
			continue
		}
		wins = append(wins, child)
	}
	return wins, nil
}

// Query gathers the attributes, geometry, and hints that drive the
// manage-or-ignore decision for win.
func (c *Conn) Query(win xp.Window) (WindowInfo, error) {
	var info WindowInfo

	attrs, err := xp.GetWindowAttributes(c.xc, win).Reply()
	if err != nil {
		return info, fmt.Errorf("window attributes: %w", err)
	}
	info.OverrideRedirect = attrs.OverrideRedirect
	info.Viewable = attrs.MapState == xp.MapStateViewable

	geom, err := xp.GetGeometry(c.xc, xp.Drawable(win)).Reply()
	if err != nil {
		return info, fmt.Errorf("window geometry: %w", err)
	}
	info.Geometry = layout.Rect{
		X:      int(geom.X),
		Y:      int(geom.Y),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}
	info.BorderWidth = int(geom.BorderWidth)

	if prop, err := xp.GetProperty(c.xc, false, win, c.atomWMProtocols,
		xp.GetPropertyTypeAny, 0, 64).Reply(); err != nil {
		c.logger.Debugf("read WM_PROTOCOLS of %d: %v", win, err)
	} else {
		for v := prop.Value; len(v) >= 4; v = v[4:] {
			switch xp.Atom(u32(v)) {
			case c.atomWMDeleteWindow:
				info.WMDeleteWindow = true
			case c.atomWMTakeFocus:
				info.WMTakeFocus = true
			}
		}
	}

	if prop, err := xp.GetProperty(c.xc, false, win, xp.AtomWmTransientFor,
		xp.GetPropertyTypeAny, 0, 64).Reply(); err != nil {
		c.logger.Debugf("read WM_TRANSIENT_FOR of %d: %v", win, err)
	} else if len(prop.Value) == 4 && u32(prop.Value) != 0 {
		info.Transient = true
	}

	if prop, err := xp.GetProperty(c.xc, false, win, xp.AtomWmHints,
		xp.GetPropertyTypeAny, 0, 64).Reply(); err != nil {
		c.logger.Debugf("read WM_HINTS of %d: %v", win, err)
	} else if v := prop.Value; len(v) >= 8 {
		flags := u32(v)
		const inputHint = 1 << 0
		if flags&inputHint != 0 && u32(v[4:]) == 0 {
			info.NeverFocus = true
		}
		if flags&urgencyHintBit != 0 {
			info.Urgent = true
		}
	}

	if prop, err := xp.GetProperty(c.xc, false, win, c.atomNetWindowType,
		xp.GetPropertyTypeAny, 0, 64).Reply(); err != nil {
		c.logger.Debugf("read _NET_WM_WINDOW_TYPE of %d: %v", win, err)
	} else {
		for v := prop.Value; len(v) >= 4; v = v[4:] {
			if xp.Atom(u32(v)) == c.atomNetTypeDock {
				info.Dock = true
			}
		}
	}
	return info, nil
}

// RegisterClient subscribes to the per-window events a managed client must
// report: pointer entry for focus-follows-pointer and structure changes for
// unmap/destroy tracking.
func (c *Conn) RegisterClient(win xp.Window) error {
	return xp.ChangeWindowAttributesChecked(c.xc, win, xp.CwEventMask, []uint32{
		xp.EventMaskEnterWindow | xp.EventMaskStructureNotify,
	}).Check()
}

// Apply moves and resizes a window to its assigned placement. The border is
// drawn outside the X width/height, so the assigned rectangle shrinks by
// twice the border width to keep tiles flush.
func (c *Conn) Apply(p layout.Placement, borderWidth int) error {
	w := p.Rect.Width - 2*borderWidth
	h := p.Rect.Height - 2*borderWidth
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return xp.ConfigureWindowChecked(c.xc, p.Window,
		xp.ConfigWindowX|xp.ConfigWindowY|
			xp.ConfigWindowWidth|xp.ConfigWindowHeight|
			xp.ConfigWindowBorderWidth,
		[]uint32{
			uint32(int32(p.Rect.X)),
			uint32(int32(p.Rect.Y)),
			uint32(w),
			uint32(h),
			uint32(borderWidth),
		}).Check()
}

// GrantConfigure forwards a configure request unchanged, preserving the
// original value mask. Used for unmanaged and floating windows.
func (c *Conn) GrantConfigure(req ConfigureRequest) error {
	mask, values := uint16(0), []uint32(nil)
	if req.ValueMask&xp.ConfigWindowX != 0 {
		mask |= xp.ConfigWindowX
		values = append(values, uint32(int32(req.Rect.X)))
	}
	if req.ValueMask&xp.ConfigWindowY != 0 {
		mask |= xp.ConfigWindowY
		values = append(values, uint32(int32(req.Rect.Y)))
	}
	if req.ValueMask&xp.ConfigWindowWidth != 0 {
		mask |= xp.ConfigWindowWidth
		values = append(values, uint32(req.Rect.Width))
	}
	if req.ValueMask&xp.ConfigWindowHeight != 0 {
		mask |= xp.ConfigWindowHeight
		values = append(values, uint32(req.Rect.Height))
	}
	if req.ValueMask&xp.ConfigWindowBorderWidth != 0 {
		mask |= xp.ConfigWindowBorderWidth
		values = append(values, uint32(req.BorderWidth))
	}
	if req.ValueMask&xp.ConfigWindowSibling != 0 {
		mask |= xp.ConfigWindowSibling
		values = append(values, uint32(req.Sibling))
	}
	if req.ValueMask&xp.ConfigWindowStackMode != 0 {
		mask |= xp.ConfigWindowStackMode
		values = append(values, uint32(req.StackMode))
	}
	if mask == 0 {
		return nil
	}
	return xp.ConfigureWindowChecked(c.xc, req.Window, mask, values).Check()
}

// DenyConfigure acknowledges a configure request without granting it: the
// client receives a synthetic ConfigureNotify restating the geometry the
// tiler assigned, so toolkits settle instead of retrying.
func (c *Conn) DenyConfigure(win xp.Window, assigned layout.Rect, borderWidth int) error {
	w := assigned.Width - 2*borderWidth
	h := assigned.Height - 2*borderWidth
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	cne := xp.ConfigureNotifyEvent{
		Event:       win,
		Window:      win,
		X:           int16(assigned.X),
		Y:           int16(assigned.Y),
		Width:       uint16(w),
		Height:      uint16(h),
		BorderWidth: uint16(borderWidth),
	}
	return xp.SendEventChecked(c.xc, false, win,
		xp.EventMaskStructureNotify, string(cne.Bytes())).Check()
}

// SetFocus gives win the input focus, also announcing it via WM_TAKE_FOCUS
// when the client participates in that protocol. A zero window parks focus
// on the root.
func (c *Conn) SetFocus(win xp.Window, takeFocus bool, t xp.Timestamp) error {
	target := win
	if target == 0 {
		target = c.root
	}
	if err := xp.SetInputFocusChecked(c.xc, xp.InputFocusPointerRoot, target, t).Check(); err != nil {
		return err
	}
	if win != 0 && takeFocus {
		return c.sendClientMessage(win, c.atomWMTakeFocus, t)
	}
	return nil
}

// Raise moves a window to the top of the stacking order.
func (c *Conn) Raise(win xp.Window) error {
	return xp.ConfigureWindowChecked(c.xc, win,
		xp.ConfigWindowStackMode, []uint32{xp.StackModeAbove}).Check()
}

// SetBorder recolors a window's border. We assume 24-bit RGB.
func (c *Conn) SetBorder(win xp.Window, color uint32) error {
	return xp.ChangeWindowAttributesChecked(c.xc, win,
		xp.CwBorderPixel, []uint32{color}).Check()
}

// MapWin shows a window.
func (c *Conn) MapWin(win xp.Window) error {
	return xp.MapWindowChecked(c.xc, win).Check()
}

// CloseWindow asks a client to go away: politely through WM_DELETE_WINDOW
// when supported, forcibly through KillClient otherwise.
func (c *Conn) CloseWindow(win xp.Window, wmDelete bool, t xp.Timestamp) error {
	if wmDelete {
		return c.sendClientMessage(win, c.atomWMDeleteWindow, t)
	}
	return xp.KillClientChecked(c.xc, uint32(win)).Check()
}

func (c *Conn) sendClientMessage(win xp.Window, atom xp.Atom, t xp.Timestamp) error {
	return xp.SendEventChecked(c.xc, false, win, xp.EventMaskNoEvent,
		string(xp.ClientMessageEvent{
			Format: 32,
			Window: win,
			Type:   c.atomWMProtocols,
			Data: xp.ClientMessageDataUnionData32New([]uint32{
				uint32(atom),
				uint32(t),
				0,
				0,
				0,
			}),
		}.Bytes())).Check()
}

// Events starts the read loop, translating protocol notifications into the
// tagged event set until the connection fails or ctx is cancelled. The
// channel closes on a read failure; Err reports the cause.
func (c *Conn) Events(ctx context.Context) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		for {
			ev, err := c.xc.WaitForEvent()
			if ev == nil && err == nil {
				c.setReadErr(errors.New("display connection closed"))
				return
			}
			if err != nil {
				// Per-request X errors are non-fatal; read errors
				// surface as a closed connection above.
				c.logger.Debugf("x error: %v", err)
				continue
			}
			out, ok := c.translate(ev)
			if !ok {
				continue
			}
			select {
			case events <- out:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}

// Err returns the read failure that closed the event channel, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *Conn) setReadErr(err error) {
	c.mu.Lock()
	if c.readErr == nil {
		c.readErr = err
	}
	c.mu.Unlock()
}

func (c *Conn) translate(ev xgb.Event) (Event, bool) {
	switch e := ev.(type) {
	case xp.MapRequestEvent:
		return MapRequest{Window: e.Window}, true
	case xp.DestroyNotifyEvent:
		return Destroyed{Window: e.Window}, true
	case xp.UnmapNotifyEvent:
		if e.Event == c.root && e.FromConfigure {
			return nil, false
		}
		return Unmapped{Window: e.Window}, true
	case xp.ConfigureRequestEvent:
		return ConfigureRequest{
			Window: e.Window,
			Rect: layout.Rect{
				X:      int(e.X),
				Y:      int(e.Y),
				Width:  int(e.Width),
				Height: int(e.Height),
			},
			BorderWidth: int(e.BorderWidth),
			ValueMask:   e.ValueMask,
			Sibling:     e.Sibling,
			StackMode:   e.StackMode,
		}, true
	case xp.EnterNotifyEvent:
		if e.Mode != xp.NotifyModeNormal || e.Detail == xp.NotifyDetailInferior {
			return nil, false
		}
		return Entered{Window: e.Event, Time: e.Time}, true
	case xp.KeyPressEvent:
		c.mu.Lock()
		keysym := c.keysyms[e.Detail][0]
		c.mu.Unlock()
		return Key{Mods: e.State &^ ignoredMods, Keysym: keysym, Time: e.Time}, true
	case xp.ConfigureNotifyEvent:
		if e.Window != c.root {
			return nil, false
		}
		return ScreenChange{Area: c.WorkArea()}, true
	case xp.MappingNotifyEvent:
		if err := c.loadKeyboardMapping(); err != nil {
			c.logger.Warnf("reload keyboard mapping: %v", err)
		}
		return nil, false
	default:
		c.logger.Tracef("ignoring event %T", ev)
		return nil, false
	}
}

// Close releases every grab and shuts the display connection down.
func (c *Conn) Close() {
	if err := xp.UngrabKeyChecked(c.xc, 0, c.root, xp.ModMaskAny).Check(); err != nil {
		c.logger.Debugf("ungrab keys on close: %v", err)
	}
	c.xc.Close()
}

func u32(b []byte) uint32 {
	return uint32(b[0])<<0 | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

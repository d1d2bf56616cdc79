package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	xp "github.com/BurntSushi/xgb/xproto"

	"github.com/tidewm/tidewm/internal/config"
	"github.com/tidewm/tidewm/internal/layout"
	"github.com/tidewm/tidewm/internal/metrics"
	"github.com/tidewm/tidewm/internal/state"
	"github.com/tidewm/tidewm/internal/util"
	"github.com/tidewm/tidewm/internal/x11"
)

// display is the slice of the X connection the engine drives. *x11.Conn
// implements it; tests substitute a fake.
type display interface {
	WorkArea() layout.Rect
	GrabKeys(chords []x11.Chord) error
	AdoptExisting() ([]xp.Window, error)
	Query(win xp.Window) (x11.WindowInfo, error)
	RegisterClient(win xp.Window) error
	Apply(p layout.Placement, borderWidth int) error
	GrantConfigure(req x11.ConfigureRequest) error
	DenyConfigure(win xp.Window, assigned layout.Rect, borderWidth int) error
	SetFocus(win xp.Window, takeFocus bool, t xp.Timestamp) error
	Raise(win xp.Window) error
	SetBorder(win xp.Window, color uint32) error
	MapWin(win xp.Window) error
	CloseWindow(win xp.Window, wmDelete bool, t xp.Timestamp) error
	Events(ctx context.Context) <-chan x11.Event
	Err() error
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	*time.Ticker
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}

type chordKey struct {
	mods   uint16
	keysym xp.Keysym
}

type binding struct {
	command string
	tag     int
	exec    []string
}

// errQuit unwinds the run loop on the quit command.
var errQuit = errors.New("quit requested")

const ratioStep = 0.05

// Engine ties together the client registry, tag views, focus history, and
// the display connection. It is single-threaded: all mutation happens on
// the Run goroutine.
type Engine struct {
	display display
	logger  *util.Logger
	metrics *metrics.Collector

	registry *state.Registry
	tags     *state.Tags
	focus    *state.Focus
	params   layout.Params
	area     layout.Rect

	strict            bool
	focusFollowsMouse bool
	borders           config.BordersConfig
	bindings          map[chordKey]binding

	// assigned holds the last rectangle the tiler gave each visible tiled
	// window, the geometry restated when a configure request is denied.
	assigned map[xp.Window]layout.Rect
	hidden   map[xp.Window]bool
	lastTime xp.Timestamp

	// mu serializes the run loop against control server reads. The run
	// loop takes it once per event; internal helpers assume it is held.
	mu sync.Mutex

	tickEvery     time.Duration
	tickerFactory func() ticker
	spawn         func(argv []string)
}

// New creates an engine from a validated configuration. The display must
// already own substructure redirection.
func New(d display, logger *util.Logger, cfg *config.Config, collector *metrics.Collector, strict bool) (*Engine, error) {
	e := &Engine{
		display:  d,
		logger:   logger,
		metrics:  collector,
		registry: state.NewRegistry(),
		tags:     state.NewTags(cfg.Tags.Count),
		focus:    state.NewFocus(),
		params: layout.Params{
			MasterCount: cfg.Layout.Masters(),
			MasterRatio: layout.ClampRatio(cfg.Layout.MasterRatio),
		},
		area:      d.WorkArea(),
		strict:    strict,
		assigned:  make(map[xp.Window]layout.Rect),
		hidden:    make(map[xp.Window]bool),
		tickEvery: cfg.HousekeepingEvery.Std(),
	}
	e.tickerFactory = func() ticker {
		return realTicker{time.NewTicker(e.tickEvery)}
	}
	e.spawn = spawnProcess
	if err := e.configure(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// configure installs the reloadable half of the configuration: bindings,
// borders, and focus behavior.
func (e *Engine) configure(cfg *config.Config) error {
	bindings := make(map[chordKey]binding, len(cfg.Bindings))
	chords := make([]x11.Chord, 0, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		mods, keysym, err := x11.ParseChord(b.Chord)
		if err != nil {
			return err
		}
		bindings[chordKey{mods, keysym}] = binding{command: b.Command, tag: b.Tag, exec: b.Exec}
		chords = append(chords, x11.Chord{Mods: mods, Keysym: keysym})
	}
	if err := e.display.GrabKeys(chords); err != nil {
		return fmt.Errorf("grab bindings: %w", err)
	}
	e.bindings = bindings
	e.borders = cfg.Borders
	e.focusFollowsMouse = cfg.FocusFollowsMouse
	return nil
}

// Reload applies a new configuration to a running engine. The tag count and
// startup layout parameters are fixed at startup; everything else takes
// effect immediately.
func (e *Engine) Reload(cfg *config.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.Tags.Count != e.tags.Count() {
		e.logger.Warnf("tags.count change (%d -> %d) needs a restart, keeping %d",
			e.tags.Count(), cfg.Tags.Count, e.tags.Count())
	}
	if err := e.configure(cfg); err != nil {
		return err
	}
	e.retile()
	e.refocus()
	return nil
}

// Run adopts pre-existing windows and then dispatches events until ctx is
// cancelled, the quit command fires, or the display connection fails.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	err := e.adoptExisting()
	if err == nil {
		e.retile()
		e.refocus()
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	tick := e.tickerFactory()
	defer tick.Stop()

	events := e.display.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C():
			e.mu.Lock()
			e.housekeep()
			e.mu.Unlock()
		case ev, ok := <-events:
			if !ok {
				if err := e.display.Err(); err != nil {
					return fmt.Errorf("display connection lost: %w", err)
				}
				return errors.New("event stream closed")
			}
			e.mu.Lock()
			err := e.handle(ev)
			if e.strict {
				e.verify()
			}
			e.mu.Unlock()
			if err != nil {
				if errors.Is(err, errQuit) {
					e.logger.Infof("quit requested")
					return nil
				}
				return err
			}
		}
	}
}

func (e *Engine) adoptExisting() error {
	wins, err := e.display.AdoptExisting()
	if err != nil {
		return fmt.Errorf("adopt existing windows: %w", err)
	}
	for _, win := range wins {
		e.manage(win)
	}
	if len(wins) > 0 {
		e.logger.Infof("adopted %d existing windows", len(wins))
	}
	return nil
}

// housekeep revalidates the work area against the display. Normally a
// no-op; it catches root geometry changes whose notify events were lost.
func (e *Engine) housekeep() {
	area := e.display.WorkArea()
	if area == e.area {
		e.logger.Tracef("housekeeping: work area unchanged")
		return
	}
	e.logger.Infof("housekeeping: work area drifted to %dx%d, retiling", area.Width, area.Height)
	e.setArea(area)
}

func (e *Engine) handle(ev x11.Event) error {
	switch ev := ev.(type) {
	case x11.MapRequest:
		e.metrics.RecordEvent("map-request")
		e.manage(ev.Window)
	case x11.Destroyed:
		e.metrics.RecordEvent("destroyed")
		e.unmanage(ev.Window)
	case x11.Unmapped:
		e.metrics.RecordEvent("unmapped")
		if e.hidden[ev.Window] {
			// We moved it offscreen ourselves; not a withdrawal.
			return nil
		}
		e.unmanage(ev.Window)
	case x11.ConfigureRequest:
		e.metrics.RecordEvent("configure-request")
		e.handleConfigure(ev)
	case x11.Entered:
		e.metrics.RecordEvent("entered")
		e.lastTime = ev.Time
		if e.focusFollowsMouse {
			e.focusWindow(ev.Window)
		}
	case x11.Key:
		e.metrics.RecordEvent("key")
		e.lastTime = ev.Time
		// Caps Lock and NumLock never change what a chord means.
		mods := ev.Mods &^ uint16(xp.ModMaskLock|xp.ModMask2)
		b, ok := e.bindings[chordKey{mods, ev.Keysym}]
		if !ok {
			e.logger.Debugf("unbound key mods=%#x keysym=%#x", mods, ev.Keysym)
			return nil
		}
		return e.runCommand(b)
	case x11.ScreenChange:
		e.metrics.RecordEvent("screen-change")
		if ev.Area != e.area {
			e.logger.Infof("screen changed to %dx%d", ev.Area.Width, ev.Area.Height)
			e.setArea(ev.Area)
		}
	default:
		e.logger.Tracef("unhandled event %T", ev)
	}
	return nil
}

func (e *Engine) setArea(area layout.Rect) {
	e.area = area
	e.retile()
}

// manage brings a window under management: queried, registered, tagged
// with the current view, and tiled unless it asked to float.
func (e *Engine) manage(win xp.Window) {
	if e.registry.Get(win) != nil {
		e.logger.Debugf("window %d already managed", win)
		return
	}
	info, err := e.display.Query(win)
	if err != nil {
		e.logger.Warnf("query window %d: %v", win, err)
		return
	}
	if info.OverrideRedirect {
		e.logger.Debugf("ignoring override-redirect window %d", win)
		return
	}
	c, err := e.registry.Add(state.Client{
		Window:         win,
		Geometry:       info.Geometry,
		BorderWidth:    info.BorderWidth,
		Tags:           e.tags.View(),
		Floating:       info.Transient || info.Dock,
		NeverFocus:     info.NeverFocus || info.Dock,
		Urgent:         info.Urgent,
		WMDeleteWindow: info.WMDeleteWindow,
		WMTakeFocus:    info.WMTakeFocus,
	})
	if err != nil {
		e.logger.Warnf("manage window %d: %v", win, err)
		return
	}
	if err := e.display.RegisterClient(win); err != nil {
		e.sendErr("register window %d: %v", win, err)
	}
	if err := e.display.MapWin(win); err != nil {
		e.sendErr("map window %d: %v", win, err)
	}
	e.logger.Infof("managing window %d (floating=%t)", win, c.Floating)
	e.focus.OnAdded(c, e.tags.View())
	e.retile()
	if c.Floating {
		if err := e.display.Raise(win); err != nil {
			e.sendErr("raise window %d: %v", win, err)
		}
	}
	e.refocus()
}

// unmanage forgets a window. Safe to call twice: destroy and unmap often
// arrive for the same window.
func (e *Engine) unmanage(win xp.Window) {
	if _, ok := e.registry.Remove(win); !ok {
		return
	}
	delete(e.assigned, win)
	delete(e.hidden, win)
	e.logger.Infof("unmanaging window %d", win)
	e.focus.OnRemoved(win, e.registry, e.tags.View())
	e.retile()
	e.refocus()
}

// handleConfigure arbitrates a configure request: floating and unmanaged
// windows get what they asked for, tiled windows get a synthetic notify
// restating their assigned geometry.
func (e *Engine) handleConfigure(req x11.ConfigureRequest) {
	c := e.registry.Get(req.Window)
	if c == nil || c.Floating {
		if c != nil {
			c.Geometry = applyRequest(c.Geometry, req)
		}
		if err := e.display.GrantConfigure(req); err != nil {
			e.sendErr("grant configure for %d: %v", req.Window, err)
		}
		return
	}
	assigned, ok := e.assigned[req.Window]
	if !ok {
		assigned = c.Geometry
	}
	e.logger.Debugf("denying configure request from tiled window %d", req.Window)
	if err := e.display.DenyConfigure(req.Window, assigned, e.borders.Width); err != nil {
		e.sendErr("deny configure for %d: %v", req.Window, err)
	}
}

func applyRequest(geom layout.Rect, req x11.ConfigureRequest) layout.Rect {
	if req.ValueMask&xp.ConfigWindowX != 0 {
		geom.X = req.Rect.X
	}
	if req.ValueMask&xp.ConfigWindowY != 0 {
		geom.Y = req.Rect.Y
	}
	if req.ValueMask&xp.ConfigWindowWidth != 0 {
		geom.Width = req.Rect.Width
	}
	if req.ValueMask&xp.ConfigWindowHeight != 0 {
		geom.Height = req.Rect.Height
	}
	return geom
}

// retile recomputes the master/stack arrangement for the current view and
// sends only the placements that changed. Clients on other tags are parked
// offscreen rather than unmapped, so no unmap events need suppressing.
func (e *Engine) retile() {
	view := e.tags.View()
	wins := e.registry.Visible(view)
	next := layout.Compute(wins, e.params, e.area)

	prev := make(map[xp.Window]layout.Rect, len(wins))
	for _, win := range wins {
		if r, ok := e.assigned[win]; ok && !e.hidden[win] {
			prev[win] = r
		}
	}
	placements := layout.Diff(prev, next, wins)
	for _, p := range placements {
		if err := e.display.Apply(p, e.borders.Width); err != nil {
			e.sendErr("place window %d: %v", p.Window, err)
		}
	}
	e.metrics.RecordLayout(len(placements))

	for win, r := range next {
		e.assigned[win] = r
		e.hidden[win] = false
		if c := e.registry.Get(win); c != nil {
			c.Geometry = r
		}
	}

	for _, win := range e.registry.All() {
		c := e.registry.Get(win)
		onView := c.Tags&view != 0
		if onView && c.Floating && e.hidden[win] {
			e.showFloating(c)
		}
		if !onView && !e.hidden[win] {
			e.park(c)
		}
	}
}

// park moves a window offscreen, hiding it without an unmap.
func (e *Engine) park(c *state.Client) {
	off := c.Geometry
	off.X = -2 * (c.Geometry.Width + 2*e.borders.Width)
	if err := e.display.Apply(layout.Placement{Window: c.Window, Rect: off}, e.borders.Width); err != nil {
		e.sendErr("park window %d: %v", c.Window, err)
	}
	e.hidden[c.Window] = true
}

func (e *Engine) showFloating(c *state.Client) {
	if err := e.display.Apply(layout.Placement{Window: c.Window, Rect: c.Geometry}, e.borders.Width); err != nil {
		e.sendErr("show window %d: %v", c.Window, err)
	}
	if err := e.display.Raise(c.Window); err != nil {
		e.sendErr("raise window %d: %v", c.Window, err)
	}
	e.hidden[c.Window] = false
}

// refocus revalidates focus against the current view and repaints borders.
func (e *Engine) refocus() {
	win := e.focus.Refocus(e.registry, e.tags.View())
	e.applyFocus(win)
}

// focusWindow gives win the focus if it is an eligible managed client.
func (e *Engine) focusWindow(win xp.Window) {
	c := e.registry.Get(win)
	if c == nil || c.NeverFocus || c.Tags&e.tags.View() == 0 {
		return
	}
	e.focus.SetCurrent(win)
	e.applyFocus(win)
}

func (e *Engine) applyFocus(win xp.Window) {
	for _, other := range e.registry.All() {
		if other == win {
			continue
		}
		c := e.registry.Get(other)
		color := uint32(e.borders.Unfocused)
		if c.Urgent {
			color = uint32(e.borders.Urgent)
		}
		if err := e.display.SetBorder(other, color); err != nil {
			e.sendErr("border of %d: %v", other, err)
		}
	}
	if win == 0 {
		if err := e.display.SetFocus(0, false, e.lastTime); err != nil {
			e.sendErr("clear focus: %v", err)
		}
		return
	}
	c := e.registry.Get(win)
	if c == nil {
		return
	}
	c.Urgent = false
	if err := e.display.SetBorder(win, uint32(e.borders.Focused)); err != nil {
		e.sendErr("border of %d: %v", win, err)
	}
	if err := e.display.SetFocus(win, c.WMTakeFocus, e.lastTime); err != nil {
		e.sendErr("focus window %d: %v", win, err)
	}
	e.logger.Debugf("focused window %d", win)
}

// sendErr logs a failed display instruction. Instruction failures are
// expected when a window dies mid-flight; only read failures are fatal.
func (e *Engine) sendErr(format string, args ...interface{}) {
	e.metrics.RecordSendError()
	e.logger.Warnf(format, args...)
}

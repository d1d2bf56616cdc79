package engine

import (
	"os/exec"
	"syscall"

	xp "github.com/BurntSushi/xgb/xproto"

	"github.com/tidewm/tidewm/internal/layout"
	"github.com/tidewm/tidewm/internal/state"
)

func (e *Engine) runCommand(b binding) error {
	e.metrics.RecordCommand(b.command)
	e.logger.Debugf("command %s", b.command)
	switch b.command {
	case "focus-next":
		e.applyFocusIfAny(e.focus.Next(e.registry, e.tags.View()))
	case "focus-prev":
		e.applyFocusIfAny(e.focus.Prev(e.registry, e.tags.View()))
	case "zoom":
		e.zoom()
	case "inc-master":
		e.setParams(e.params.MasterCount+1, e.params.MasterRatio)
	case "dec-master":
		e.setParams(e.params.MasterCount-1, e.params.MasterRatio)
	case "inc-ratio":
		e.setParams(e.params.MasterCount, e.params.MasterRatio+ratioStep)
	case "dec-ratio":
		e.setParams(e.params.MasterCount, e.params.MasterRatio-ratioStep)
	case "view-tag":
		e.setView(e.tags.Mask(b.tag))
	case "view-prev":
		e.tags.ViewPrevious()
		e.afterViewChange()
	case "toggle-view":
		e.tags.ToggleView(e.tags.Mask(b.tag))
		e.afterViewChange()
	case "toggle-tag":
		e.retagFocused(func(c *state.Client) error {
			return e.tags.ToggleClientTag(c, e.tags.Mask(b.tag))
		})
	case "move-to-tag":
		e.retagFocused(func(c *state.Client) error {
			return e.tags.MoveClientToTag(c, e.tags.Mask(b.tag))
		})
	case "toggle-floating":
		e.toggleFloating()
	case "spawn":
		e.spawn(b.exec)
	case "kill-focused":
		e.killFocused()
	case "quit":
		return errQuit
	default:
		e.logger.Warnf("unknown command %q", b.command)
	}
	return nil
}

func (e *Engine) applyFocusIfAny(win xp.Window) {
	if win == 0 {
		return
	}
	e.focus.SetCurrent(win)
	e.applyFocus(win)
}

// zoom moves the focused tiled client to the master position. Focusing the
// current master zooms the next client instead, the dwm swap gesture.
func (e *Engine) zoom() {
	win := e.focus.Current()
	c := e.registry.Get(win)
	if c == nil || c.Floating {
		return
	}
	if wins := e.registry.Visible(e.tags.View()); len(wins) > 0 && wins[0] == win {
		next := e.focus.Next(e.registry, e.tags.View())
		nc := e.registry.Get(next)
		if nc == nil || nc.Floating || next == win {
			return
		}
		win = next
		e.focus.SetCurrent(win)
	}
	e.registry.MoveToFront(win)
	e.retile()
	e.applyFocus(win)
}

func (e *Engine) setParams(masters int, ratio float64) {
	if masters < 0 {
		masters = 0
	}
	e.params = layout.Params{MasterCount: masters, MasterRatio: layout.ClampRatio(ratio)}
	e.retile()
}

func (e *Engine) setView(mask uint32) {
	if prev := e.tags.SetView(mask); prev == e.tags.View() {
		return
	}
	e.afterViewChange()
}

func (e *Engine) afterViewChange() {
	e.logger.Debugf("viewing tags %09b", e.tags.View())
	e.retile()
	e.refocus()
}

func (e *Engine) retagFocused(mutate func(*state.Client) error) {
	c := e.registry.Get(e.focus.Current())
	if c == nil {
		return
	}
	if err := mutate(c); err != nil {
		e.logger.Warnf("retag window %d: %v", c.Window, err)
		return
	}
	e.retile()
	e.refocus()
}

func (e *Engine) toggleFloating() {
	c := e.registry.Get(e.focus.Current())
	if c == nil {
		return
	}
	c.Floating = !c.Floating
	if c.Floating {
		delete(e.assigned, c.Window)
	}
	e.retile()
	if c.Floating {
		if err := e.display.Raise(c.Window); err != nil {
			e.sendErr("raise window %d: %v", c.Window, err)
		}
	}
}

func (e *Engine) killFocused() {
	c := e.registry.Get(e.focus.Current())
	if c == nil {
		return
	}
	if err := e.display.CloseWindow(c.Window, c.WMDeleteWindow, e.lastTime); err != nil {
		e.sendErr("close window %d: %v", c.Window, err)
	}
}

// spawnProcess launches an external command detached in its own session so
// children survive the window manager.
func spawnProcess(argv []string) {
	if len(argv) == 0 {
		return
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return
	}
	go func() { _ = cmd.Wait() }()
}

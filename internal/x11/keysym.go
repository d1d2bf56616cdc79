package x11

// Keysym constants come from /usr/include/X11/keysymdef.h.

import (
	"fmt"
	"strings"

	xp "github.com/BurntSushi/xgb/xproto"
)

const (
	XKBackspace xp.Keysym = 0xff08
	XKTab       xp.Keysym = 0xff09
	XKReturn    xp.Keysym = 0xff0d
	XKEscape    xp.Keysym = 0xff1b
	XKSpace     xp.Keysym = 0x0020
	XKHome      xp.Keysym = 0xff50
	XKLeft      xp.Keysym = 0xff51
	XKUp        xp.Keysym = 0xff52
	XKRight     xp.Keysym = 0xff53
	XKDown      xp.Keysym = 0xff54
	XKPageUp    xp.Keysym = 0xff55
	XKPageDown  xp.Keysym = 0xff56
	XKEnd       xp.Keysym = 0xff57
	XKDelete    xp.Keysym = 0xffff
	XKF1        xp.Keysym = 0xffbe
)

// namedKeysyms resolves the non-printable key names accepted in binding
// chords. Printable ASCII keys resolve directly from their rune.
var namedKeysyms = map[string]xp.Keysym{
	"backspace": XKBackspace,
	"tab":       XKTab,
	"return":    XKReturn,
	"enter":     XKReturn,
	"escape":    XKEscape,
	"space":     XKSpace,
	"home":      XKHome,
	"left":      XKLeft,
	"up":        XKUp,
	"right":     XKRight,
	"down":      XKDown,
	"pageup":    XKPageUp,
	"pagedown":  XKPageDown,
	"end":       XKEnd,
	"delete":    XKDelete,
}

// modifierMasks resolves the modifier names accepted in binding chords.
// "mod" is the conventional alias for the Super/Windows key.
var modifierMasks = map[string]uint16{
	"shift":   xp.ModMaskShift,
	"control": xp.ModMaskControl,
	"ctrl":    xp.ModMaskControl,
	"alt":     xp.ModMask1,
	"mod1":    xp.ModMask1,
	"mod":     xp.ModMask4,
	"mod4":    xp.ModMask4,
	"super":   xp.ModMask4,
}

// LookupKeysym resolves a key name from a binding chord. Single printable
// ASCII characters map to themselves (lowercased); longer names resolve via
// the named table, F1 through F12 included.
func LookupKeysym(name string) (xp.Keysym, error) {
	lower := strings.ToLower(name)
	if len(lower) == 1 {
		r := rune(lower[0])
		if r > 0x20 && r < 0x7f {
			return xp.Keysym(r), nil
		}
		return 0, fmt.Errorf("unsupported key %q", name)
	}
	if ks, ok := namedKeysyms[lower]; ok {
		return ks, nil
	}
	if strings.HasPrefix(lower, "f") && len(lower) <= 3 {
		var n int
		if _, err := fmt.Sscanf(lower, "f%d", &n); err == nil && n >= 1 && n <= 12 {
			return XKF1 + xp.Keysym(n-1), nil
		}
	}
	return 0, fmt.Errorf("unknown key name %q", name)
}

// LookupModifier resolves a modifier name from a binding chord.
func LookupModifier(name string) (uint16, error) {
	if mask, ok := modifierMasks[strings.ToLower(name)]; ok {
		return mask, nil
	}
	return 0, fmt.Errorf("unknown modifier %q", name)
}

// ParseChord splits a "mod+shift+return" style chord into a modifier mask
// and a keysym. The last component is the key, everything before it must be
// a modifier.
func ParseChord(chord string) (uint16, xp.Keysym, error) {
	parts := strings.Split(chord, "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return 0, 0, fmt.Errorf("empty chord %q", chord)
	}
	var mods uint16
	for _, part := range parts[:len(parts)-1] {
		mask, err := LookupModifier(strings.TrimSpace(part))
		if err != nil {
			return 0, 0, fmt.Errorf("chord %q: %w", chord, err)
		}
		mods |= mask
	}
	keysym, err := LookupKeysym(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil {
		return 0, 0, fmt.Errorf("chord %q: %w", chord, err)
	}
	return mods, keysym, nil
}

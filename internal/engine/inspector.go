package engine

import (
	"sort"

	xp "github.com/BurntSushi/xgb/xproto"

	"github.com/tidewm/tidewm/internal/layout"
)

// Status is a serializable snapshot of the manager state, served over the
// control socket.
type Status struct {
	TagCount    int            `json:"tagCount"`
	View        uint32         `json:"view"`
	MasterCount int            `json:"masterCount"`
	MasterRatio float64        `json:"masterRatio"`
	Area        layout.Rect    `json:"area"`
	Focused     xp.Window      `json:"focused,omitempty"`
	Clients     []ClientStatus `json:"clients,omitempty"`
}

// ClientStatus describes one managed window in a status snapshot.
type ClientStatus struct {
	Window   xp.Window   `json:"window"`
	Tags     uint32      `json:"tags"`
	Geometry layout.Rect `json:"geometry"`
	Floating bool        `json:"floating,omitempty"`
	Urgent   bool        `json:"urgent,omitempty"`
	Hidden   bool        `json:"hidden,omitempty"`
	Focused  bool        `json:"focused,omitempty"`
}

// Status snapshots the current state. Safe to call from the control server
// goroutine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	s := Status{
		TagCount:    e.tags.Count(),
		View:        e.tags.View(),
		MasterCount: e.params.MasterCount,
		MasterRatio: e.params.MasterRatio,
		Area:        e.area,
		Focused:     e.focus.Current(),
	}
	for _, win := range e.registry.All() {
		c := e.registry.Get(win)
		s.Clients = append(s.Clients, ClientStatus{
			Window:   win,
			Tags:     c.Tags,
			Geometry: c.Geometry,
			Floating: c.Floating,
			Urgent:   c.Urgent,
			Hidden:   e.hidden[win],
			Focused:  win == s.Focused,
		})
	}
	sort.Slice(s.Clients, func(i, j int) bool {
		return s.Clients[i].Window < s.Clients[j].Window
	})
	return s
}

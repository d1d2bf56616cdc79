package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates anonymous counters about event and command traffic.
type Collector struct {
	mu       sync.RWMutex
	enabled  bool
	started  time.Time
	events   map[string]uint64
	commands map[string]*CommandMetrics
	totals   Totals
}

// CommandMetrics captures per-command counters tracked by the collector.
type CommandMetrics struct {
	Command string    `json:"command"`
	Runs    uint64    `json:"runs"`
	LastRun time.Time `json:"lastRun,omitempty"`
}

// Totals aggregates the layout pipeline counters in a snapshot.
type Totals struct {
	EventsHandled     uint64 `json:"eventsHandled"`
	LayoutsComputed   uint64 `json:"layoutsComputed"`
	PlacementsApplied uint64 `json:"placementsApplied"`
	SendErrors        uint64 `json:"sendErrors"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled  bool              `json:"enabled"`
	Started  time.Time         `json:"started,omitempty"`
	Totals   Totals            `json:"totals"`
	Events   map[string]uint64 `json:"events,omitempty"`
	Commands []CommandMetrics  `json:"commands,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.events = nil
		c.commands = nil
		c.totals = Totals{}
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.events = make(map[string]uint64)
	c.commands = make(map[string]*CommandMetrics)
}

// RecordEvent counts a handled event by kind.
func (c *Collector) RecordEvent(kind string) {
	c.update(func(now time.Time) {
		if c.events == nil {
			c.events = make(map[string]uint64)
		}
		c.events[kind]++
		c.totals.EventsHandled++
	})
}

// RecordCommand counts a dispatched command by name.
func (c *Collector) RecordCommand(name string) {
	c.update(func(now time.Time) {
		if c.commands == nil {
			c.commands = make(map[string]*CommandMetrics)
		}
		m, exists := c.commands[name]
		if !exists {
			m = &CommandMetrics{Command: name}
			c.commands[name] = m
		}
		m.Runs++
		m.LastRun = now
	})
}

// RecordLayout counts one layout computation and the placements it moved.
func (c *Collector) RecordLayout(placements int) {
	c.update(func(time.Time) {
		c.totals.LayoutsComputed++
		c.totals.PlacementsApplied += uint64(placements)
	})
}

// RecordSendError counts a failed display instruction.
func (c *Collector) RecordSendError() {
	c.update(func(time.Time) {
		c.totals.SendErrors++
	})
}

func (c *Collector) update(mutate func(time.Time)) {
	if c == nil || mutate == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	mutate(now)
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	snap.Totals = c.totals
	if len(c.events) > 0 {
		snap.Events = make(map[string]uint64, len(c.events))
		for kind, n := range c.events {
			snap.Events[kind] = n
		}
	}
	if len(c.commands) > 0 {
		snap.Commands = make([]CommandMetrics, 0, len(c.commands))
		for _, m := range c.commands {
			if m == nil {
				continue
			}
			snap.Commands = append(snap.Commands, *m)
		}
		sort.Slice(snap.Commands, func(i, j int) bool {
			return snap.Commands[i].Command < snap.Commands[j].Command
		})
	}
	return snap
}

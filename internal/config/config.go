package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tidewm/tidewm/internal/x11"
)

// Config is the top-level configuration document.
type Config struct {
	Tags              TagsConfig      `yaml:"tags"`
	Layout            LayoutConfig    `yaml:"layout"`
	Borders           BordersConfig   `yaml:"borders"`
	FocusFollowsMouse bool            `yaml:"focusFollowsMouse"`
	HousekeepingEvery Duration        `yaml:"housekeepingEvery"`
	Bindings          []BindingConfig `yaml:"bindings"`
}

// TagsConfig sizes the workspace tag set.
type TagsConfig struct {
	Count int `yaml:"count"`
}

// LayoutConfig seeds the master/stack parameters applied at startup.
// MasterCount is a pointer so an explicit 0 (no master area, monocle-like
// stacking) is distinguishable from an unset field.
type LayoutConfig struct {
	MasterCount *int    `yaml:"masterCount"`
	MasterRatio float64 `yaml:"masterRatio"`
}

// Masters returns the configured master count.
func (l LayoutConfig) Masters() int {
	if l.MasterCount == nil {
		return 1
	}
	return *l.MasterCount
}

// BordersConfig describes window border width and colors.
type BordersConfig struct {
	Width     int   `yaml:"width"`
	Focused   Color `yaml:"focused"`
	Unfocused Color `yaml:"unfocused"`
	Urgent    Color `yaml:"urgent"`
}

// Color is a 24-bit RGB pixel value decoded from a "#rrggbb" string.
type Color uint32

// UnmarshalYAML decodes "#rrggbb" (or "rrggbb") hex notation.
func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fmt.Errorf("color %q: want 6 hex digits", value.Value)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("color %q: %w", value.Value, err)
	}
	*c = Color(v)
	return nil
}

// Duration is a time.Duration decoded from "30s" style strings.
type Duration time.Duration

// UnmarshalYAML decodes time.ParseDuration notation.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BindingConfig maps a key chord to a command. Tag-addressed commands carry
// the one-based tag number in Tag; spawn carries its argv in Exec.
type BindingConfig struct {
	Chord   string   `yaml:"chord"`
	Command string   `yaml:"command"`
	Tag     int      `yaml:"tag"`
	Exec    []string `yaml:"exec"`
}

// commandNames lists every command a binding may invoke. Values record
// whether the command takes a tag argument, an exec argv, or neither.
var commandNames = map[string]struct{ wantsTag, wantsExec bool }{
	"focus-next":      {},
	"focus-prev":      {},
	"zoom":            {},
	"inc-master":      {},
	"dec-master":      {},
	"inc-ratio":       {},
	"dec-ratio":       {},
	"view-prev":       {},
	"kill-focused":    {},
	"toggle-floating": {},
	"quit":            {},
	"view-tag":        {wantsTag: true},
	"toggle-view":     {wantsTag: true},
	"toggle-tag":      {wantsTag: true},
	"move-to-tag":     {wantsTag: true},
	"spawn":           {wantsExec: true},
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults, and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Bindings = defaultBindings()
	return cfg
}

func defaultBindings() []BindingConfig {
	b := []BindingConfig{
		{Chord: "mod+j", Command: "focus-next"},
		{Chord: "mod+k", Command: "focus-prev"},
		{Chord: "mod+return", Command: "zoom"},
		{Chord: "mod+i", Command: "inc-master"},
		{Chord: "mod+d", Command: "dec-master"},
		{Chord: "mod+l", Command: "inc-ratio"},
		{Chord: "mod+h", Command: "dec-ratio"},
		{Chord: "mod+tab", Command: "view-prev"},
		{Chord: "mod+shift+c", Command: "kill-focused"},
		{Chord: "mod+shift+space", Command: "toggle-floating"},
		{Chord: "mod+shift+q", Command: "quit"},
		{Chord: "mod+shift+return", Command: "spawn", Exec: []string{"xterm"}},
	}
	for n := 1; n <= 9; n++ {
		key := strconv.Itoa(n)
		b = append(b,
			BindingConfig{Chord: "mod+" + key, Command: "view-tag", Tag: n},
			BindingConfig{Chord: "mod+shift+" + key, Command: "move-to-tag", Tag: n},
			BindingConfig{Chord: "mod+ctrl+" + key, Command: "toggle-view", Tag: n},
			BindingConfig{Chord: "mod+ctrl+shift+" + key, Command: "toggle-tag", Tag: n},
		)
	}
	return b
}

func (c *Config) applyDefaults() {
	if c.Tags.Count == 0 {
		c.Tags.Count = 9
	}
	if c.Layout.MasterCount == nil {
		n := 1
		c.Layout.MasterCount = &n
	}
	if c.Layout.MasterRatio == 0 {
		c.Layout.MasterRatio = 0.55
	}
	if c.Borders.Width == 0 {
		c.Borders.Width = 2
	}
	if c.Borders.Focused == 0 {
		c.Borders.Focused = 0x005577
	}
	if c.Borders.Unfocused == 0 {
		c.Borders.Unfocused = 0x444444
	}
	if c.Borders.Urgent == 0 {
		c.Borders.Urgent = 0xaa3333
	}
	if c.HousekeepingEvery == 0 {
		c.HousekeepingEvery = Duration(time.Minute)
	}
}

// Validate performs basic sanity checks.
func (c *Config) Validate() error {
	if c.Tags.Count < 1 || c.Tags.Count > 32 {
		return fmt.Errorf("tags.count must be between 1 and 32, got %d", c.Tags.Count)
	}
	if c.Layout.Masters() < 0 {
		return fmt.Errorf("layout.masterCount cannot be negative")
	}
	if c.Layout.MasterRatio < 0.05 || c.Layout.MasterRatio > 0.95 {
		return fmt.Errorf("layout.masterRatio must be between 0.05 and 0.95, got %g", c.Layout.MasterRatio)
	}
	if c.Borders.Width < 0 {
		return fmt.Errorf("borders.width cannot be negative")
	}
	if c.HousekeepingEvery < 0 {
		return fmt.Errorf("housekeepingEvery cannot be negative")
	}
	seen := map[string]struct{}{}
	for i, b := range c.Bindings {
		if b.Chord == "" {
			return fmt.Errorf("binding %d: chord cannot be empty", i)
		}
		mods, keysym, err := x11.ParseChord(b.Chord)
		if err != nil {
			return fmt.Errorf("binding %d: %w", i, err)
		}
		key := fmt.Sprintf("%d/%d", mods, keysym)
		if _, exists := seen[key]; exists {
			return fmt.Errorf("binding %d: duplicate chord %q", i, b.Chord)
		}
		seen[key] = struct{}{}
		want, ok := commandNames[b.Command]
		if !ok {
			return fmt.Errorf("binding %d (%s): unknown command %q", i, b.Chord, b.Command)
		}
		if want.wantsTag && (b.Tag < 1 || b.Tag > c.Tags.Count) {
			return fmt.Errorf("binding %d (%s): %s needs a tag between 1 and %d, got %d",
				i, b.Chord, b.Command, c.Tags.Count, b.Tag)
		}
		if !want.wantsTag && b.Tag != 0 {
			return fmt.Errorf("binding %d (%s): %s takes no tag argument", i, b.Chord, b.Command)
		}
		if want.wantsExec && len(b.Exec) == 0 {
			return fmt.Errorf("binding %d (%s): spawn needs an exec argv", i, b.Chord)
		}
		if !want.wantsExec && len(b.Exec) != 0 {
			return fmt.Errorf("binding %d (%s): %s takes no exec argv", i, b.Chord, b.Command)
		}
	}
	return nil
}

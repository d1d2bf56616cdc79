package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
bindings:
  - chord: mod+return
    command: zoom
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Tags.Count != 9 {
		t.Errorf("tags.count = %d, want 9", cfg.Tags.Count)
	}
	if cfg.Layout.Masters() != 1 {
		t.Errorf("layout.masterCount = %d, want 1", cfg.Layout.Masters())
	}
	if cfg.Layout.MasterRatio != 0.55 {
		t.Errorf("layout.masterRatio = %g, want 0.55", cfg.Layout.MasterRatio)
	}
	if cfg.Borders.Width != 2 {
		t.Errorf("borders.width = %d, want 2", cfg.Borders.Width)
	}
	if cfg.HousekeepingEvery.Std() != time.Minute {
		t.Errorf("housekeepingEvery = %s, want 1m", cfg.HousekeepingEvery.Std())
	}
}

func TestParseKeepsExplicitZeroMasters(t *testing.T) {
	cfg, err := Parse([]byte(`
layout:
  masterCount: 0
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Layout.Masters() != 0 {
		t.Errorf("layout.masterCount = %d, want explicit 0 preserved", cfg.Layout.Masters())
	}
}

func TestParseFullDocument(t *testing.T) {
	cfg, err := Parse([]byte(`
tags:
  count: 4
layout:
  masterCount: 2
  masterRatio: 0.6
borders:
  width: 3
  focused: "#aabbcc"
  unfocused: "445566"
  urgent: "#ff0000"
focusFollowsMouse: true
housekeepingEvery: 30s
bindings:
  - chord: mod+shift+return
    command: spawn
    exec: ["xterm", "-fg", "white"]
  - chord: mod+2
    command: view-tag
    tag: 2
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Tags.Count != 4 {
		t.Errorf("tags.count = %d, want 4", cfg.Tags.Count)
	}
	if cfg.Borders.Focused != 0xaabbcc {
		t.Errorf("borders.focused = %#x, want 0xaabbcc", cfg.Borders.Focused)
	}
	if cfg.Borders.Unfocused != 0x445566 {
		t.Errorf("borders.unfocused = %#x, want 0x445566", cfg.Borders.Unfocused)
	}
	if !cfg.FocusFollowsMouse {
		t.Error("focusFollowsMouse not decoded")
	}
	if cfg.HousekeepingEvery.Std() != 30*time.Second {
		t.Errorf("housekeepingEvery = %s, want 30s", cfg.HousekeepingEvery.Std())
	}
	if len(cfg.Bindings) != 2 || cfg.Bindings[0].Exec[0] != "xterm" || cfg.Bindings[1].Tag != 2 {
		t.Errorf("bindings decoded wrong: %+v", cfg.Bindings)
	}
}

func TestParseRejections(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "bad color",
			doc:  "borders:\n  focused: \"#12345\"\n",
			want: "hex digits",
		},
		{
			name: "tag count out of range",
			doc:  "tags:\n  count: 33\n",
			want: "tags.count",
		},
		{
			name: "ratio out of range",
			doc:  "layout:\n  masterRatio: 0.99\n",
			want: "masterRatio",
		},
		{
			name: "unknown command",
			doc:  "bindings:\n  - chord: mod+x\n    command: explode\n",
			want: "unknown command",
		},
		{
			name: "bad chord",
			doc:  "bindings:\n  - chord: hyper+x\n    command: zoom\n",
			want: "unknown modifier",
		},
		{
			name: "duplicate chord",
			doc: "bindings:\n" +
				"  - chord: mod+x\n    command: zoom\n" +
				"  - chord: mod+x\n    command: focus-next\n",
			want: "duplicate chord",
		},
		{
			name: "tag command without tag",
			doc:  "bindings:\n  - chord: mod+x\n    command: view-tag\n",
			want: "needs a tag",
		},
		{
			name: "tag beyond count",
			doc:  "tags:\n  count: 3\nbindings:\n  - chord: mod+x\n    command: view-tag\n    tag: 4\n",
			want: "needs a tag",
		},
		{
			name: "spawn without argv",
			doc:  "bindings:\n  - chord: mod+x\n    command: spawn\n",
			want: "exec argv",
		},
		{
			name: "argv on non-spawn",
			doc:  "bindings:\n  - chord: mod+x\n    command: zoom\n    exec: [xterm]\n",
			want: "no exec argv",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

package state

import (
	"errors"
	"testing"
)

func TestTagsSetViewReturnsPrevious(t *testing.T) {
	tags := NewTags(9)
	if got := tags.SetView(1 << 3); got != 1 {
		t.Fatalf("expected previous mask 1, got %#x", got)
	}
	if tags.View() != 1<<3 {
		t.Fatalf("expected view %#x, got %#x", 1<<3, tags.View())
	}
}

func TestTagsMaskIsOneBased(t *testing.T) {
	tags := NewTags(9)
	if got := tags.Mask(1); got != 1 {
		t.Fatalf("tag 1 must map to the lowest bit, got %#x", got)
	}
	if got := tags.Mask(9); got != 1<<8 {
		t.Fatalf("tag 9 must map to bit 8, got %#x", got)
	}
	if got := tags.Mask(0); got != 0 {
		t.Fatalf("tag 0 is out of range, got %#x", got)
	}
	if got := tags.Mask(10); got != 0 {
		t.Fatalf("tag 10 is out of range for nine tags, got %#x", got)
	}
}

func TestTagsSetViewRefusesEmptyMask(t *testing.T) {
	tags := NewTags(4)
	tags.SetView(1 << 2)
	tags.SetView(0)
	if tags.View() != 1<<2 {
		t.Fatalf("empty mask should leave the view unchanged, got %#x", tags.View())
	}
	// A mask entirely outside the tag universe truncates to empty.
	tags.SetView(1 << 10)
	if tags.View() != 1<<2 {
		t.Fatalf("out-of-range mask should leave the view unchanged, got %#x", tags.View())
	}
}

func TestTagsViewPrevious(t *testing.T) {
	tags := NewTags(9)
	tags.SetView(1 << 4)
	tags.ViewPrevious()
	if tags.View() != 1 {
		t.Fatalf("expected to return to tag 1, got %#x", tags.View())
	}
	tags.ViewPrevious()
	if tags.View() != 1<<4 {
		t.Fatalf("expected to toggle forward again, got %#x", tags.View())
	}
}

func TestTagsToggleViewKeepsOneBit(t *testing.T) {
	tags := NewTags(9)
	tags.ToggleView(1 << 1)
	if tags.View() != 1|1<<1 {
		t.Fatalf("expected combined view, got %#x", tags.View())
	}
	tags.ToggleView(1 << 1)
	tags.ToggleView(1) // would clear the last bit
	if tags.View() != 1 {
		t.Fatalf("clearing the last view bit must be refused, got %#x", tags.View())
	}
}

func TestToggleClientTagNeverOrphans(t *testing.T) {
	tags := NewTags(9)
	c := &Client{Window: 1, Tags: 1}
	if err := tags.ToggleClientTag(c, 1<<2); err != nil {
		t.Fatalf("toggle on failed: %v", err)
	}
	if c.Tags != 1|1<<2 {
		t.Fatalf("unexpected mask %#x", c.Tags)
	}
	if err := tags.ToggleClientTag(c, 1); err != nil {
		t.Fatalf("toggle off failed: %v", err)
	}
	if err := tags.ToggleClientTag(c, 1<<2); !errors.Is(err, ErrWouldOrphanClient) {
		t.Fatalf("expected ErrWouldOrphanClient, got %v", err)
	}
	if c.Tags != 1<<2 {
		t.Fatalf("refused toggle must leave the mask unchanged, got %#x", c.Tags)
	}
}

func TestMoveClientToTag(t *testing.T) {
	tags := NewTags(9)
	c := &Client{Window: 1, Tags: 1}
	if err := tags.MoveClientToTag(c, 1<<5); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if c.Tags != 1<<5 {
		t.Fatalf("unexpected mask %#x", c.Tags)
	}
	if err := tags.MoveClientToTag(c, 0); !errors.Is(err, ErrWouldOrphanClient) {
		t.Fatalf("expected ErrWouldOrphanClient, got %v", err)
	}
}

func TestTagsCountClamped(t *testing.T) {
	if got := NewTags(0).Count(); got != 1 {
		t.Fatalf("expected at least one tag, got %d", got)
	}
	if got := NewTags(64).Count(); got != 32 {
		t.Fatalf("expected the count to clamp to 32, got %d", got)
	}
	if all := NewTags(9).All(); all != 0x1ff {
		t.Fatalf("expected mask 0x1ff for nine tags, got %#x", all)
	}
}

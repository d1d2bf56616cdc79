package state

// Tags tracks the fixed tag universe and the currently viewed tag set. A tag
// is one bit in a uint32 mask; a client is visible when its mask intersects
// the current view.
type Tags struct {
	count    int
	view     uint32
	previous uint32
}

// NewTags creates a tag set of count tags, viewing the first tag. Count is
// clamped to [1, 32].
func NewTags(count int) *Tags {
	if count < 1 {
		count = 1
	}
	if count > 32 {
		count = 32
	}
	return &Tags{count: count, view: 1, previous: 1}
}

// Count reports the number of tags.
func (t *Tags) Count() int {
	return t.count
}

// All returns the mask with every tag bit set.
func (t *Tags) All() uint32 {
	return uint32(1)<<uint(t.count) - 1
}

// Mask returns the single-bit mask for tag n. Tags are numbered 1..Count,
// matching how bindings and status output name them; out-of-range n yields 0.
func (t *Tags) Mask(n int) uint32 {
	if n < 1 || n > t.count {
		return 0
	}
	return 1 << uint(n-1)
}

// View returns the currently viewed tag mask.
func (t *Tags) View() uint32 {
	return t.view
}

// SetView replaces the current view and returns the previous mask. Masks
// outside the tag universe are truncated; an empty mask is refused and the
// view left unchanged.
func (t *Tags) SetView(mask uint32) uint32 {
	mask &= t.All()
	prev := t.view
	if mask == 0 || mask == t.view {
		return prev
	}
	t.previous = t.view
	t.view = mask
	return prev
}

// ToggleView flips a tag bit in the current view. Clearing the last bit is
// refused so a view is never empty.
func (t *Tags) ToggleView(mask uint32) {
	mask &= t.All()
	next := t.view ^ mask
	if next == 0 {
		return
	}
	t.previous = t.view
	t.view = next
}

// ViewPrevious swaps the current and previous views, the dwm "back" gesture.
func (t *Tags) ViewPrevious() {
	t.view, t.previous = t.previous, t.view
}

// ToggleClientTag flips one tag bit on a client, refusing the mutation when
// it would clear the client's last tag.
func (t *Tags) ToggleClientTag(c *Client, mask uint32) error {
	if c == nil {
		return ErrUnknownClient
	}
	mask &= t.All()
	next := c.Tags ^ mask
	if next == 0 {
		return ErrWouldOrphanClient
	}
	c.Tags = next
	return nil
}

// MoveClientToTag replaces a client's tag mask entirely. An empty mask is
// refused.
func (t *Tags) MoveClientToTag(c *Client, mask uint32) error {
	if c == nil {
		return ErrUnknownClient
	}
	mask &= t.All()
	if mask == 0 {
		return ErrWouldOrphanClient
	}
	c.Tags = mask
	return nil
}

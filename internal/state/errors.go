package state

import "errors"

var (
	// ErrAlreadyManaged is returned when a window handle is added to the
	// registry twice. Map requests can be replayed by the server, so
	// callers treat this as a recoverable race.
	ErrAlreadyManaged = errors.New("window is already managed")

	// ErrUnknownClient is returned when an operation references a handle
	// that is not (or no longer) in the registry. Destroy notifications
	// race with queued commands, so every lookup checks for it.
	ErrUnknownClient = errors.New("unknown client window")

	// ErrWouldOrphanClient is returned when a tag mutation would leave a
	// client with no tags at all. The mutation is refused and the registry
	// left unchanged.
	ErrWouldOrphanClient = errors.New("client must keep at least one tag")
)

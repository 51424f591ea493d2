package journal

import "errors"

// ErrInvalidEntry is returned when an entry has no event kind.
var ErrInvalidEntry = errors.New("journal: entry has no event kind")

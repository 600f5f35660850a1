package crawler

import (
	"errors"
	"fmt"
)

// ErrCursorRevisit is returned when a source hands back a cursor that does not move forward.
var ErrCursorRevisit = errors.New("cursor does not advance")

// PageCursor tracks the position of a paged source. Page-numbered sources use
// Page; offset-token sources use Offset. A cursor only ever moves forward.
type PageCursor struct {
	Page      int
	Offset    string
	Exhausted bool
}

// FirstPage returns the cursor for the first page of an offset-token source.
func FirstPage() PageCursor {
	return PageCursor{Page: 1}
}

// Advance validates next against c and returns it. A next cursor that neither
// increments the page nor changes the offset is rejected unless it is exhausted.
func (c PageCursor) Advance(next PageCursor) (PageCursor, error) {
	if next.Exhausted {
		return next, nil
	}
	if next.Page < c.Page {
		return c, fmt.Errorf("advance from page %d to %d: %w", c.Page, next.Page, ErrCursorRevisit)
	}
	if next.Page == c.Page && next.Offset == c.Offset {
		return c, fmt.Errorf("advance from offset %q: %w", c.Offset, ErrCursorRevisit)
	}
	return next, nil
}

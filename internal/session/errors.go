package session

import "errors"

// ErrItemNotFound is returned when an item id is not on the current page.
var ErrItemNotFound = errors.New("session: item not on page")

// ErrNoPrompt is returned by Decide when no prompt is configured.
var ErrNoPrompt = errors.New("session: no prompt configured")

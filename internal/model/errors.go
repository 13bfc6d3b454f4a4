package model

import "fmt"

// IOError reports a persistence or exchange access failure. In-memory state
// is left untouched when one is returned.
type IOError struct {
	Op  string // e.g. "save", "read", "list"
	Key string // exchange key or storage location, if any
	Err error
}

func (e *IOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

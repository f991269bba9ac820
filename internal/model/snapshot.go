package model

import "time"

// Snapshot is one delivery of a live query: the full collection as of At.
// Err is set when the collection could not be read; Items is nil then.
type Snapshot[T any] struct {
	Items []T
	At    time.Time
	Err   error
}

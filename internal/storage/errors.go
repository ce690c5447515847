package storage

import "errors"

var (
	// ErrCollectionNotFound is returned when a collection has never been written to or seeded.
	ErrCollectionNotFound = errors.New("collection does not exist")

	// ErrRecordNotFound is returned when an id is not present in an existing collection.
	ErrRecordNotFound = errors.New("entry does not exist")

	// ErrInvalidRecord is returned when a write payload is not a JSON object.
	ErrInvalidRecord = errors.New("record must be a JSON object")
)

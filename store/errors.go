package store

import "errors"

var (
	// ErrNoSnapshot indicates nothing has been saved yet.
	ErrNoSnapshot = errors.New("store: no snapshot")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("store: required parameter is nil")

	// ErrCorrupt indicates stored data cannot be decoded.
	ErrCorrupt = errors.New("store: corrupt record")
)

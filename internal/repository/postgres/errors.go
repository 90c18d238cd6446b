package postgres

import "errors"

// ErrNotFound is returned by every repository in this package when a lookup
// by ID finds no row.
var ErrNotFound = errors.New("postgres: not found")

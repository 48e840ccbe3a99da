// Package repository defines error types that are reused across the item
// store and its callers.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and translate
// them into HTTP status codes.
package repository

import "errors"

// ErrItemNotFound is returned when no item has the requested id.
// Handlers should translate this into an HTTP 404 response.
var ErrItemNotFound = errors.New("item not found")

// ErrEmptyName is returned when a create or update carries an empty name.
// Handlers validate first, so reaching this is a programming error.
var ErrEmptyName = errors.New("item name is empty")

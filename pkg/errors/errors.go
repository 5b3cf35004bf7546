package errors

import "errors"

// Core error kinds surfaced by the media tree / source / provider APIs.
var (
	// ErrAllocationFailed is returned when an internal allocation could not
	// be satisfied. Mutators that return it leave state unchanged.
	ErrAllocationFailed = errors.New("mediasource: allocation failed")
	// ErrNotFound is returned when the service-discovery factory fails to
	// construct the requested media source. Every factory error maps to it:
	// an unknown name and a plugin that exists but fails to initialise are
	// not told apart.
	ErrNotFound = errors.New("mediasource: not found")
	// ErrSdInitFailed is returned when the SD-construction circuit breaker
	// is open after repeated construction failures and rejects the attempt
	// without calling the factory. Distinguishable from ErrNotFound for
	// diagnostics, but callers should treat the two identically for control
	// flow.
	ErrSdInitFailed = errors.New("mediasource: service discovery init failed")
	// ErrItemRequired is returned when a nil item is passed to Tree.Add.
	ErrItemRequired = errors.New("mediasource: item must not be nil")
	// ErrNodeNotInTree is returned when a caller passes a parent node that
	// does not belong to the tree it is being used with.
	ErrNodeNotInTree = errors.New("mediasource: node does not belong to this tree")
)

package util

import "errors"

// Sentinel errors for the reconciliation pipeline
var (
	// ErrInvalidInput indicates an empty or malformed query, filter or identifier.
	// Nothing has been done when this is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexInconsistency indicates an owner could not be indexed without
	// breaking the (owner, word, position) uniqueness rule
	ErrIndexInconsistency = errors.New("index inconsistency")

	// ErrExternalWrite indicates a playlist rewrite or relational update failed mid-apply
	ErrExternalWrite = errors.New("external write failed")

	// ErrComputeInProgress indicates a rebuild is already running in another
	// process. The index reports this as RebuildResult.InProgress; commands
	// that cannot wait for it return this error.
	ErrComputeInProgress = errors.New("computation already in progress")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrUnsupported indicates a playlist format or operation is not supported
	ErrUnsupported = errors.New("unsupported")
)

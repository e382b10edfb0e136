package export

import "errors"

// Domain-specific errors for export operations.
var (
	// ErrNoSource is returned when the exporter has no snapshot source.
	ErrNoSource = errors.New("export: no snapshot source configured")

	// ErrInvalidOrigin is returned for an origin other than manual or automatic.
	ErrInvalidOrigin = errors.New("export: invalid origin")

	// ErrWriteFailed wraps failures replacing the output file.
	ErrWriteFailed = errors.New("export: writing output failed")
)

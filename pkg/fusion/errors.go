package fusion

import "errors"

var (
	// ErrDetectionUnavailable means the primary detector failed; the analysis is aborted
	ErrDetectionUnavailable = errors.New("detection unavailable")

	// ErrIdentificationDegraded means a secondary lookup produced no usable names
	ErrIdentificationDegraded = errors.New("identification degraded")

	// ErrQuantityUnavailable means the quantity step failed for one item
	ErrQuantityUnavailable = errors.New("quantity unavailable")

	// ErrInvalidFrame means the input image cannot be analyzed
	ErrInvalidFrame = errors.New("invalid frame")
)

package domain

import "errors"

// Sentinel errors. Callers add context with fmt.Errorf("%w: ...") and test
// with errors.Is.
var (
	// ErrMalformedEdge is returned when an adjacency row has an endpoint that
	// cannot be normalized or a negative distance.
	ErrMalformedEdge = errors.New("malformed adjacency edge")

	// ErrUnknownCaseType is returned for case types other than "confirmed" and "deaths".
	ErrUnknownCaseType = errors.New("unknown case type")

	// ErrSourceUnavailable wraps any failure to retrieve a remote table.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMissingCaseData is returned when a region has no active-case value
	// on the requested date, or the primary source has not published every
	// date a derivation needs.
	ErrMissingCaseData = errors.New("missing case data")

	// ErrInvalidRegion is returned when a region id is malformed or not part of the graph.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrNoPath is returned when source and destination are disconnected.
	ErrNoPath = errors.New("no path found")

	// ErrInvalidQuery is returned for derivation requests with an unusable date range.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrStageOrder is returned when a derivation stage is applied to a
	// record set that is not in the stage it expects.
	ErrStageOrder = errors.New("derivation stage out of order")
)

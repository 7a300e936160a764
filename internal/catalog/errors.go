package catalog

import "errors"

// Catalog errors.
var (
	// ErrDocumentNotFound is returned when the domain document does not exist.
	ErrDocumentNotFound = errors.New("catalog document not found")
	// ErrParse is returned when the domain document is not a valid catalog.
	ErrParse = errors.New("catalog document malformed")
	// ErrIO is returned when the domain document cannot be read or written.
	ErrIO = errors.New("catalog document i/o failure")

	ErrItemNotFound    = errors.New("item not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrInvalidArgument = errors.New("invalid filter argument")
	ErrUnknownDomain   = errors.New("unknown domain")
)

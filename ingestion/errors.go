package ingestion

import "errors"

var (
	// ErrTransformerRequired is returned when a transformer is not provided.
	ErrTransformerRequired = errors.New("transformer required")

	// ErrRegistrarRequired is returned when a registrar is not provided.
	ErrRegistrarRequired = errors.New("registrar required")

	// ErrDatasetRequired is returned when no dataset id is given.
	ErrDatasetRequired = errors.New("dataset id required")

	// ErrNoDocument is returned when a nil document is ingested.
	ErrNoDocument = errors.New("no document")
)

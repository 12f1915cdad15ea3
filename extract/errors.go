package extract

import "errors"

var (
	errNoText      = errors.New("no text content")
	errInvalidUTF8 = errors.New("content is not valid UTF-8")
	errMissingPart = errors.New("required document part not found in archive")
	errNoSlides    = errors.New("no slides found in archive")
	errEmptyTable  = errors.New("table has no rows")
)

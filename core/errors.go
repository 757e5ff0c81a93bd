package core

import "errors"

var (
	ErrNilResponse          = errors.New("core: handler returned nil response")
	ErrMissingContentType   = errors.New("core: missing content type")
	ErrUnsupportedMediaType = errors.New("core: unsupported media type")
	ErrFailedToParseJSON    = errors.New("core: failed to parse json body")
)

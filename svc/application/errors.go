package application

import "errors"

var (
	ErrUnknownProvider = errors.New("application: unknown provider")
	ErrNoDatabase      = errors.New("application: provider needs a database pool")
)

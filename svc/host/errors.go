package host

import "errors"

var ErrAccountNotFound = errors.New("host: account not found")

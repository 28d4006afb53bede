package storage

import "errors"

var ErrInvalidDocument = errors.New("Status document is not valid JSON")

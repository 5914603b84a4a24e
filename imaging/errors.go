package imaging

import "errors"

var (
	errShortHeader       = errors.New("imaging: header too short")
	errInvalidDimensions = errors.New("imaging: width/height out of range (1..10000)")
)

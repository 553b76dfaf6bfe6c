package js8

import "errors"

var (
	// ErrEmptyFrame indicates that an empty line was passed to the decoder.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrMalformedFrame indicates that a frame could not be decoded as a
	// JSON API message or is missing its type field.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrErrorValue indicates that the frame's value field contains the
	// in-band error marker and the whole message should be discarded.
	ErrErrorValue = errors.New("frame value contains error marker")

	// ErrInvalidSpeed indicates that a speed name or submode value does not
	// identify a known modem speed.
	ErrInvalidSpeed = errors.New("invalid speed")
)

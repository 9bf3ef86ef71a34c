package image

import (
	"errors"
	"fmt"
)

// error messages
var regionError = "IIIF 2.1 `region` argument is not recognized: %#v"
var sizeError = "IIIF 2.1 `size` argument is not recognized: %#v"
var rotationError = "IIIF 2.1 `rotation` argument is not recognized: %#v"
var qualityError = "IIIF 2.1 `quality` and `format` arguments were expected: %#v"
var formatError = "IIIF 2.1 `format` argument is not yet recognized: %#v"

var (
	// ErrUnsupportedFormat is returned by renderers that cannot write the
	// requested output format.
	ErrUnsupportedFormat = errors.New("output format is not supported by this renderer")
	// ErrUnsupportedRotation is returned by renderers limited to multiples of 90.
	ErrUnsupportedRotation = errors.New("rotation angle is not supported by this renderer")
	// ErrUnsupportedQuality is returned by renderers that cannot produce a quality.
	ErrUnsupportedQuality = errors.New("quality is not supported by this renderer")
	// ErrUnreadable is returned when the source bytes are not a readable image.
	ErrUnreadable = errors.New("source is not a readable image")
)

// ParseError reports an IIIF parameter that does not match its grammar.
type ParseError struct {
	Param  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	var message string
	switch e.Param {
	case "region":
		message = fmt.Sprintf(regionError, e.Value)
	case "size":
		message = fmt.Sprintf(sizeError, e.Value)
	case "rotation":
		message = fmt.Sprintf(rotationError, e.Value)
	case "quality":
		message = fmt.Sprintf(qualityError, e.Value)
	case "format":
		message = fmt.Sprintf(formatError, e.Value)
	default:
		message = fmt.Sprintf("IIIF 2.1 `%s` argument is not recognized: %#v", e.Param, e.Value)
	}
	if e.Reason != "" {
		message += " (" + e.Reason + ")"
	}
	return message
}

func parseError(param, value, reason string) *ParseError {
	return &ParseError{Param: param, Value: value, Reason: reason}
}

// NotResolvedError is a programming error: a size was compared or
// canonicalized before it was resolved against an image.
type NotResolvedError struct {
	Op string
}

func (e *NotResolvedError) Error() string {
	return fmt.Sprintf("size: %s called before Resolve", e.Op)
}

package iiif

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/greut/sipi/auth"
	"github.com/greut/sipi/image"
	"github.com/greut/sipi/internal/logger"
	"github.com/greut/sipi/shard"
	"github.com/greut/sipi/source"
)

// error messages
var maxSizeError = "The given `size` is out of the limits %vx%v (%vx%v or area %v)"

// HTTPError represents a HTTP error to be shown to the user.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error formats the HTTPError message.
func (e HTTPError) Error() string {
	return fmt.Sprintf("%d (%s) %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// toHTTPError classifies err into the status code the client gets.
func toHTTPError(err error) HTTPError {
	var he HTTPError
	if errors.As(err, &he) {
		return he
	}

	var parseErr *image.ParseError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &parseErr):
		status = http.StatusBadRequest
	case errors.Is(err, source.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, image.ErrUnsupportedFormat),
		errors.Is(err, image.ErrUnsupportedRotation),
		errors.Is(err, image.ErrUnsupportedQuality),
		errors.Is(err, image.ErrUnreadable):
		status = http.StatusNotImplemented
	case errors.Is(err, shard.ErrLocked), errors.Is(err, shard.ErrNoPending):
		status = http.StatusConflict
	case errors.Is(err, shard.ErrLevels):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrMissingToken):
		status = http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	return HTTPError{status, err.Error()}
}

func writeError(w http.ResponseWriter, err error) {
	e := toHTTPError(err)
	if e.StatusCode >= 500 {
		logger.Error("iiif: %s", e.Message)
	} else {
		debug("%s", e.Error())
	}
	http.Error(w, e.Error(), e.StatusCode)
}

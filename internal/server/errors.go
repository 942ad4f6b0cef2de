package server

import (
	"errors"
	"net/http"

	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/playback"
)

type apiError struct {
	Code    int
	Message string
	Kind    string
}

func badRequest(msg string) *apiError {
	return &apiError{Code: http.StatusBadRequest, Message: msg, Kind: "bad_request"}
}

// toAPIError maps domain errors onto HTTP statuses.
func toAPIError(err error) *apiError {
	var (
		validation  *playback.ValidationError
		pbErr       *playback.PlaybackError
		unsupported *playback.UnsupportedFeatureError
		synthesis   *playback.SynthesisError
	)
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		code = http.StatusUnsupportedMediaType
	case errors.As(err, &unsupported):
		code = http.StatusNotImplemented
	case errors.As(err, &pbErr), errors.As(err, &synthesis):
		code = http.StatusBadGateway
	case errors.Is(err, playback.ErrUnknownPrayer), errors.Is(err, blobstore.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, blobstore.ErrInvalidURL):
		code = http.StatusBadRequest
	case errors.Is(err, playback.ErrEmptySequence):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, blobstore.ErrFull), errors.Is(err, blobstore.ErrTooLarge):
		code = http.StatusInsufficientStorage
	}
	return &apiError{Code: code, Message: err.Error(), Kind: playback.Kind(err)}
}

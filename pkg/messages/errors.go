package messages

import (
	"context"
	"errors"
	"net/http"

	"github.com/cbodonnell/fairroll/pkg/commitment"
	"github.com/cbodonnell/fairroll/pkg/round"
	"github.com/cbodonnell/fairroll/pkg/store"
)

const DetailUnknownOrUsedCommitment = "Commitment hash not found or already used."

// NewErrorResponse maps a core error onto the status and detail reported to
// clients. Unknown or used commitments are client errors; everything else is
// a server side failure.
func NewErrorResponse(err error) *ErrorResponse {
	switch {
	case round.IsUnknownOrUsed(err):
		return &ErrorResponse{Status: http.StatusNotFound, Detail: DetailUnknownOrUsedCommitment}
	case IsAborted(err):
		return &ErrorResponse{Status: http.StatusRequestTimeout, Detail: "Request cancelled before completion"}
	case store.IsUnavailable(err):
		return &ErrorResponse{Status: http.StatusServiceUnavailable, Detail: "Commitment store unavailable, try again"}
	case commitment.IsRandomSource(err):
		return &ErrorResponse{Status: http.StatusInternalServerError, Detail: "Failed to generate server seed"}
	default:
		return &ErrorResponse{Status: http.StatusInternalServerError, Detail: "Internal server error"}
	}
}

// IsAborted reports whether err comes from the caller's context ending
// rather than from a failure on the server side.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

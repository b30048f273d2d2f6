package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoscore/pkg/server/dto"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// respondError maps domain error kinds to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, &types.NotFoundError{}):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, &types.InvalidReferenceError{}):
		status, code = http.StatusBadRequest, "invalid_reference"
	case errors.Is(err, &types.ConflictError{}):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, &types.UpstreamUnavailableError{}):
		status, code = http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.Is(err, types.ErrOutOfRange),
		errors.Is(err, types.ErrInvalidInterval),
		errors.Is(err, types.ErrEmptyID),
		errors.Is(err, types.ErrEmptyIdentityKey),
		errors.Is(err, types.ErrEmptyObjectType),
		errors.Is(err, types.ErrEmptyEndpoint):
		status, code = http.StatusBadRequest, "invalid_request"
	}
	c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error(), Code: status})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid_request",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}

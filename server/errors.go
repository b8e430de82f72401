package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/feed"
	. "github.com/plutoid/plutoid/utils/log"
)

const (
	ErrorBadRequest  = "bad_request"
	ErrorNoViewer    = "viewer_missing"
	ErrorNotFound    = "not_found"
	ErrorConflict    = "conflict"
	ErrorUnavailable = "unavailable"
	ErrorInternal    = "internal"
)

var errBadBody = errors.New("malformed request body")

var badRequests = []error{
	errBadBody,
	feed.ErrInvalidPageSize,
	feed.ErrInvalidCursor,
	feed.ErrEmptyComment,
	feed.ErrEmptyPost,
	feed.ErrEmptyQuery,
	feed.ErrInvalidHashtag,
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// abortWithError maps aggregator errors onto status codes. Clients retry only
// when "retryable" is set.
func abortWithError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, ErrorInternal
	body := gin.H{"msg": err.Error()}

	var pageErr *feed.PageError
	switch {
	case errors.Is(err, feed.ErrNoViewer):
		status, code = http.StatusUnauthorized, ErrorNoViewer
	case isAny(err, badRequests...):
		status, code = http.StatusBadRequest, ErrorBadRequest
	case isAny(err, feed.ErrPostNotFound, feed.ErrUserNotFound):
		status, code = http.StatusNotFound, ErrorNotFound
	case isAny(err, feed.ErrUserExists, feed.ErrUserNameTaken):
		status, code = http.StatusConflict, ErrorConflict
	case errors.As(err, &pageErr):
		status, code = http.StatusServiceUnavailable, ErrorUnavailable
		body["retryable"] = pageErr.Retryable()
	}

	if status >= http.StatusInternalServerError {
		Log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	body["code"] = code
	c.AbortWithStatusJSON(status, body)
}

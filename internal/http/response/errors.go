package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/livechat-backend/internal/platform/apierr"
)

// PublicMessage is the text a client may see for err. Server-side failures are
// reported by code only.
func PublicMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		return "internal error"
	}
	switch ae.Code {
	case apierr.CodePersistenceFailure:
		return "could not store the message"
	case apierr.CodeUpstreamFatal:
		return "the assistant is unavailable"
	}
	if ae.Status >= http.StatusInternalServerError {
		return "internal error"
	}
	return ae.Error()
}

// RespondAPIError renders err with the status and code it carries and records it
// on the gin context for the request logger.
func RespondAPIError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(apierr.StatusOf(err), ErrorEnvelope{
		Error: APIError{
			Message: PublicMessage(err),
			Code:    apierr.CodeOf(err),
		},
	})
}

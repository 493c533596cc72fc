package server

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/server/middleware"
)

// RespondWithError renders err as the JSON error envelope and aborts the
// Gin chain. 401 and 403 answers carry a WWW-Authenticate challenge.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err)
	if challenge := middleware.AuthChallenge(appErr); challenge != "" {
		c.Header("WWW-Authenticate", challenge)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

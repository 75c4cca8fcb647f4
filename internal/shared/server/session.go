package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
)

// registerSessionRoutes attaches /session, which echoes the caller's identity
// as resolved by the auth middleware without touching storage.
func registerSessionRoutes(rg *gin.RouterGroup) {
	rg.GET("/session", sessionHandler)
}

func sessionHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"userId":  userID,
		"isGuest": middleware.IsGuest(c),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		response["name"] = name
	}
	if picture := middleware.UserPictureFromContext(c); picture != "" {
		response["picture"] = picture
	}

	respond.JSON(c, http.StatusOK, response)
}

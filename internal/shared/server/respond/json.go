package respond

import (
	"github.com/gin-gonic/gin"
)

// JSON writes payload with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// Uncached writes payload with Cache-Control: no-store. Report bodies change
// between polls, so intermediaries must not replay an in-progress answer.
func Uncached(c *gin.Context, status int, payload any) {
	c.Header("Cache-Control", "no-store")
	JSON(c, status, payload)
}

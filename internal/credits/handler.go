package credits

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/server/middleware"
	"persona-backend/internal/shared/server/respond"
)

// Handler exposes credit balances.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches credit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", h.getBalance)
}

func (h *Handler) getBalance(c *gin.Context) {
	b, err := h.Svc.Balance(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch credits", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"creditsRemaining": b.Remaining})
}

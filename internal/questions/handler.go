package questions

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"persona-backend/internal/shared/server/respond"
)

// Handler serves the catalog.
type Handler struct {
	Bank *Bank
}

// NewHandler constructs a Handler.
func NewHandler(bank *Bank) *Handler {
	return &Handler{Bank: bank}
}

// RegisterRoutes attaches question routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/questions", h.list)
}

func (h *Handler) list(c *gin.Context) {
	variant := c.DefaultQuery("variant", VariantStandard)
	if variant != VariantStandard && variant != VariantPremium {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown variant", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"variant":   variant,
		"questions": h.Bank.ForVariant(variant),
	})
}

package handler

import (
	"context"
	"net/http"

	"constituency-streets/internal/models"

	"github.com/gin-gonic/gin"
)

// StreetsHandler handles per-constituency street listing requests.
type StreetsHandler struct {
	service StreetQueryService
}

// Service interface for dependency injection.
type StreetQueryService interface {
	StreetsInConstituency(context.Context, string) ([]models.ResolvedStreet, error)
}

// NewStreetsHandler creates a new streets handler.
func NewStreetsHandler(svc StreetQueryService) *StreetsHandler {
	return &StreetsHandler{service: svc}
}

// Streets handles GET /constituencies/:code/streets requests.
func (h *StreetsHandler) Streets(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing constituency code"})
		return
	}

	streets, err := h.service.StreetsInConstituency(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if len(streets) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no streets found for constituency"})
		return
	}

	c.JSON(http.StatusOK, streets)
}

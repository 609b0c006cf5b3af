package handler

import (
	"net/http"

	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/gin-gonic/gin"
)

type ContractorHandler struct {
	contractors repo.ContractorRepo
}

func NewContractorHandler(contractors repo.ContractorRepo) *ContractorHandler {
	return &ContractorHandler{contractors: contractors}
}

// List returns the contractor pool, optionally filtered by trade category
func (h *ContractorHandler) List(c *gin.Context) {
	var (
		contractors any
		count       int
	)

	if category := c.Query("category"); category != "" {
		list, err := h.contractors.ListByCategory(c.Request.Context(), category)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contractors"})
			return
		}
		contractors, count = list, len(list)
	} else {
		list, err := h.contractors.ListAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contractors"})
			return
		}
		contractors, count = list, len(list)
	}

	c.JSON(http.StatusOK, gin.H{"contractors": contractors, "count": count})
}

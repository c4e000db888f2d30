package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTally returns the attendance counters for ?date=
func (h *Handler) GetTally(c *gin.Context) {
	d, ok := h.parseDay(c)
	if !ok {
		return
	}

	tallies, err := h.Store.Tallies(c.Request.Context(), d)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch attendance tallies"})
		return
	}

	// Calculate totals
	var totalIns, totalOuts int
	for _, t := range tallies {
		totalIns += t.ClockIns
		totalOuts += t.ClockOuts
	}

	c.JSON(http.StatusOK, gin.H{
		"date":      d.Key(),
		"employees": tallies,
		"totals": gin.H{
			"clock_ins":  totalIns,
			"clock_outs": totalOuts,
		},
	})
}

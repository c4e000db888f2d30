package handlers

import (
	"net/http"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/shifttype"
	"github.com/gin-gonic/gin"
)

// ValidateShift checks an assignment without storing it
func (h *Handler) ValidateShift(c *gin.Context) {
	var input models.NewShift
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	if input.Date.IsZero() {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "date is required"})
		return
	}

	info, ok := shifttype.Lookup(input.ShiftType)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "Unknown shift type: " + string(input.ShiftType)})
		return
	}

	emp, err := h.Store.Employee(c.Request.Context(), input.EmployeeID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "Unknown employee"})
		return
	}

	if !info.Allows(emp.Position) {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": emp.Name + " (" + string(emp.Position) + ") cannot take " + info.Label,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"shift": gin.H{
			"date":       input.Date.String(),
			"shift_type": info.ID,
			"label":      info.Label,
		},
	})
}

// ShiftTypes returns the static shift type table
func (h *Handler) ShiftTypes(c *gin.Context) {
	c.JSON(http.StatusOK, shifttype.All())
}

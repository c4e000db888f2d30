package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// NewRouter wires every schedule store route onto a fresh engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	h.Register(r)
	return r
}

// Register adds the routes to r
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Shift Board schedule store",
			"version": Version,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/shift-types", h.ShiftTypes)

		api.GET("/shifts/week", h.WeekShifts)
		api.POST("/shifts", h.CreateShift)
		api.POST("/shifts/validate", h.ValidateShift)
		api.DELETE("/shifts/:id", h.DeleteShift)
		api.PATCH("/shifts/:id/time", h.UpdateShiftTime)

		api.GET("/employees", h.ListEmployees)
		api.POST("/employees", h.CreateEmployee)
		api.GET("/employees/scheduled", h.ScheduledEmployees)
		api.GET("/employees/:id", h.GetEmployee)

		api.GET("/attendance/tally", h.GetTally)
	}
}

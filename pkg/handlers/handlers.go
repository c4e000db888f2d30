package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/database"
	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/week"
	"github.com/gin-gonic/gin"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	Store *database.Store
}

// statusFor maps store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrIneligible), errors.Is(err, database.ErrShiftType):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) parseDay(c *gin.Context) (models.Date, bool) {
	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required"})
		return models.Date{}, false
	}
	d, err := models.ParseDate(raw, h.Store.Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Date{}, false
	}
	return d, true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// WeekShifts returns all shifts in the Monday-start week containing ?date=
func (h *Handler) WeekShifts(c *gin.Context) {
	d, ok := h.parseDay(c)
	if !ok {
		return
	}
	shifts, err := h.Store.ShiftsInWeek(c.Request.Context(), week.Of(d.Time))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load shifts"})
		return
	}
	c.JSON(http.StatusOK, shifts)
}

// CreateShift assigns an employee to a day and shift type
func (h *Handler) CreateShift(c *gin.Context) {
	var input models.NewShift
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Date.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	shift, err := h.Store.CreateShift(c.Request.Context(), input)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, shift)
}

// DeleteShift removes an assignment
func (h *Handler) DeleteShift(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteShift(c.Request.Context(), id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shift deleted"})
}

// UpdateShiftTime records time_in or time_out, one field per request
func (h *Handler) UpdateShiftTime(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.TimeUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	field, value, err := req.Field()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + string(field) + " timestamp"})
		return
	}

	shift, err := h.Store.UpdateShiftTime(c.Request.Context(), id, field, at)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, shift)
}

// ListEmployees returns the full roster
func (h *Handler) ListEmployees(c *gin.Context) {
	employees, err := h.Store.Employees(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load employees"})
		return
	}
	c.JSON(http.StatusOK, employees)
}

// GetEmployee returns one employee
func (h *Handler) GetEmployee(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	emp, err := h.Store.Employee(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, emp)
}

// CreateEmployee adds an employee
func (h *Handler) CreateEmployee(c *gin.Context) {
	var input models.Employee
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	emp, err := h.Store.CreateEmployee(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, emp)
}

// ScheduledEmployees returns employees holding a shift on ?date=
func (h *Handler) ScheduledEmployees(c *gin.Context) {
	d, ok := h.parseDay(c)
	if !ok {
		return
	}
	employees, err := h.Store.ScheduledOn(c.Request.Context(), d)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load scheduled employees"})
		return
	}
	c.JSON(http.StatusOK, employees)
}

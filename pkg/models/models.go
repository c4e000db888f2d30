package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DayLayout is the only date shape exchanged with the schedule store
const DayLayout = "2006-01-02T00:00:00"

// TimestampLayout is used for recorded clock-in/clock-out times
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Position is the employment category that gates shift eligibility
type Position string

const (
	PositionFullTime Position = "full_time"
	PositionPartTime Position = "part_time"
)

// Valid reports whether p is one of the known categories
func (p Position) Valid() bool {
	return p == PositionFullTime || p == PositionPartTime
}

// ShiftType identifies one of the fixed weekly shift blocks
type ShiftType string

const (
	ShiftDai1  ShiftType = "DAI1"
	ShiftDai2  ShiftType = "DAI2"
	ShiftNgan1 ShiftType = "NGAN1"
	ShiftNgan2 ShiftType = "NGAN2"
	ShiftNgan3 ShiftType = "NGAN3"
	ShiftNgan4 ShiftType = "NGAN4"
)

// TimeField selects which attendance timestamp a partial update writes
type TimeField string

const (
	TimeIn  TimeField = "time_in"
	TimeOut TimeField = "time_out"
)

// Date is a calendar day. It always marshals as yyyy-MM-ddT00:00:00.
type Date struct {
	time.Time
}

// NewDate truncates t to midnight in its own location
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}
}

// String returns the wire form of the day
func (d Date) String() string {
	return d.Format(DayLayout)
}

// Key returns the yyyy-MM-dd form used for storage and grouping
func (d Date) Key() string {
	return d.Format("2006-01-02")
}

// SameDay reports whether both dates fall on the same calendar day
func (d Date) SameDay(o Date) bool {
	return d.Key() == o.Key()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s, time.Local)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDate accepts the day layout, a bare yyyy-MM-dd or RFC 3339 and drops
// any time-of-day component.
func ParseDate(s string, loc *time.Location) (Date, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{DayLayout, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return NewDate(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

// Employee is the subset of staff data the scheduling views need
type Employee struct {
	ID       uint     `json:"id"`
	Name     string   `json:"name" binding:"required"`
	Position Position `json:"position" binding:"required,oneof=full_time part_time"`
	Phone    string   `json:"phone,omitempty"`
	Email    string   `json:"email,omitempty"`
	Address  string   `json:"address,omitempty"`
	Image    string   `json:"image,omitempty"`
}

// Shift is one employee assigned to one shift type on one day
type Shift struct {
	ID         uint       `json:"id"`
	EmployeeID uint       `json:"employee_id"`
	Date       Date       `json:"date"`
	ShiftType  ShiftType  `json:"shift_type"`
	TimeIn     *time.Time `json:"time_in,omitempty"`
	TimeOut    *time.Time `json:"time_out,omitempty"`
}

// NewShift is the payload for creating a shift
type NewShift struct {
	EmployeeID uint      `json:"employee_id" binding:"required" validate:"required"`
	Date       Date      `json:"date"`
	ShiftType  ShiftType `json:"shift_type" binding:"required" validate:"required,oneof=DAI1 DAI2 NGAN1 NGAN2 NGAN3 NGAN4"`
}

// TimeUpdate is a partial update of exactly one attendance field
type TimeUpdate struct {
	TimeIn  *string `json:"time_in,omitempty"`
	TimeOut *string `json:"time_out,omitempty"`
}

// Field returns the single field carried by the update and its value
func (u TimeUpdate) Field() (TimeField, string, error) {
	switch {
	case u.TimeIn != nil && u.TimeOut != nil:
		return "", "", fmt.Errorf("only one of time_in, time_out may be set")
	case u.TimeIn != nil:
		return TimeIn, *u.TimeIn, nil
	case u.TimeOut != nil:
		return TimeOut, *u.TimeOut, nil
	}
	return "", "", fmt.Errorf("one of time_in, time_out is required")
}

// FormatTimestamp normalises a wall-clock instant for the store
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// MatchResult is the face-matching service response
type MatchResult struct {
	Confidence float64 `json:"confidence"`
	UserID     *uint   `json:"-"`
}

func (m *MatchResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Confidence float64         `json:"confidence"`
		UserID     json.RawMessage `json:"user_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Confidence = raw.Confidence
	m.UserID = nil

	id := bytes.Trim(bytes.TrimSpace(raw.UserID), `"`)
	if len(id) == 0 || string(id) == "null" {
		return nil
	}
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user_id %s: %w", raw.UserID, err)
	}
	v := uint(n)
	m.UserID = &v
	return nil
}

// AttendanceTally counts recorded clock events for one employee on one day
type AttendanceTally struct {
	Date       string `json:"date"`
	EmployeeID uint   `json:"employee_id"`
	ClockIns   int    `json:"clock_ins"`
	ClockOuts  int    `json:"clock_outs"`
}

package shifttype

import (
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
)

// Info describes one shift type and who may work it
type Info struct {
	ID      models.ShiftType  `json:"id"`
	Label   string            `json:"label"`
	Color   string            `json:"color"`
	Allowed []models.Position `json:"allowed_positions"`
	Start   time.Duration     `json:"-"`
	End     time.Duration     `json:"-"`
}

// Hours returns the scheduled length of the shift
func (i Info) Hours() float64 {
	return (i.End - i.Start).Hours()
}

// Allows checks if an employee category may take this shift type
func (i Info) Allows(p models.Position) bool {
	for _, a := range i.Allowed {
		if a == p {
			return true
		}
	}
	return false
}

// order is the display order of the weekly grid rows
var order = []models.ShiftType{
	models.ShiftDai1,
	models.ShiftDai2,
	models.ShiftNgan1,
	models.ShiftNgan2,
	models.ShiftNgan3,
	models.ShiftNgan4,
}

var table = buildTable()

func buildTable() map[models.ShiftType]Info {
	fullTime := []models.Position{models.PositionFullTime}
	partTime := []models.Position{models.PositionPartTime}

	entries := []Info{
		{ID: models.ShiftDai1, Label: "Ca dài 1", Color: "#1e88e5", Allowed: fullTime, Start: 6 * time.Hour, End: 14 * time.Hour},
		{ID: models.ShiftDai2, Label: "Ca dài 2", Color: "#3949ab", Allowed: fullTime, Start: 14 * time.Hour, End: 22 * time.Hour},
		{ID: models.ShiftNgan1, Label: "Ca ngắn 1", Color: "#43a047", Allowed: partTime, Start: 6 * time.Hour, End: 10 * time.Hour},
		{ID: models.ShiftNgan2, Label: "Ca ngắn 2", Color: "#7cb342", Allowed: partTime, Start: 10 * time.Hour, End: 14 * time.Hour},
		{ID: models.ShiftNgan3, Label: "Ca ngắn 3", Color: "#fb8c00", Allowed: partTime, Start: 14 * time.Hour, End: 18 * time.Hour},
		{ID: models.ShiftNgan4, Label: "Ca ngắn 4", Color: "#e53935", Allowed: partTime, Start: 18 * time.Hour, End: 22 * time.Hour},
	}

	m := make(map[models.ShiftType]Info, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return m
}

// Lookup returns a copy of the entry for id
func Lookup(id models.ShiftType) (Info, bool) {
	info, ok := table[id]
	if !ok {
		return Info{}, false
	}
	info.Allowed = append([]models.Position(nil), info.Allowed...)
	return info, true
}

// Known reports whether id is one of the fixed shift types
func Known(id models.ShiftType) bool {
	_, ok := table[id]
	return ok
}

// Types returns the shift type identifiers in display order
func Types() []models.ShiftType {
	return append([]models.ShiftType(nil), order...)
}

// All returns every entry in display order
func All() []Info {
	out := make([]Info, 0, len(order))
	for _, id := range order {
		info, _ := Lookup(id)
		out = append(out, info)
	}
	return out
}

// Eligible checks if an employee with position p may be assigned shift type id.
// Unknown shift types accept nobody.
func Eligible(id models.ShiftType, p models.Position) bool {
	info, ok := table[id]
	return ok && info.Allows(p)
}

// FilterEligible keeps only the employees allowed to work shift type id
func FilterEligible(id models.ShiftType, employees []models.Employee) []models.Employee {
	out := make([]models.Employee, 0, len(employees))
	for _, e := range employees {
		if Eligible(id, e.Position) {
			out = append(out, e)
		}
	}
	return out
}

// Window returns the start and end instants of shift type id on day
func Window(id models.ShiftType, day models.Date) (time.Time, time.Time, bool) {
	info, ok := table[id]
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return day.Add(info.Start), day.Add(info.End), true
}

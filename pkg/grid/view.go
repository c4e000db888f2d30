package grid

import (
	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/shifttype"
	"github.com/arnavshah/shiftboard-go/pkg/week"
)

var typeIndex = func() map[models.ShiftType]int {
	m := make(map[models.ShiftType]int)
	for i, st := range shifttype.Types() {
		m[st] = i
	}
	return m
}()

// Cell is one (day, shift type) slot of the weekly grid
type Cell struct {
	Day       int
	Date      models.Date
	ShiftType models.ShiftType
	Shifts    []models.Shift
}

// WeekView partitions a week's shifts into the 7 x 6 grid. It is rebuilt
// from scratch on every load and never edited in place.
type WeekView struct {
	Window week.Window
	cells  [7][][]models.Shift

	// Unplaced holds shifts dated outside the window or with an unknown
	// type. They belong to no cell.
	Unplaced []models.Shift
}

// NewWeekView places every shift into exactly one cell
func NewWeekView(w week.Window, shifts []models.Shift) WeekView {
	v := WeekView{Window: w}
	for d := range v.cells {
		v.cells[d] = make([][]models.Shift, len(typeIndex))
	}

	for _, s := range shifts {
		day, ok := w.Index(s.Date)
		col, known := typeIndex[s.ShiftType]
		if !ok || !known {
			v.Unplaced = append(v.Unplaced, s)
			continue
		}
		v.cells[day][col] = append(v.cells[day][col], s)
	}
	return v
}

// Cell returns the shifts in one slot, in store order
func (v WeekView) Cell(day int, st models.ShiftType) []models.Shift {
	col, ok := typeIndex[st]
	if !ok || day < 0 || day >= len(v.cells) || v.cells[day] == nil {
		return nil
	}
	return append([]models.Shift(nil), v.cells[day][col]...)
}

// Cells lists all 42 slots, day by day in shift type display order
func (v WeekView) Cells() []Cell {
	days := v.Window.Days()
	types := shifttype.Types()
	out := make([]Cell, 0, len(days)*len(types))
	for d := range days {
		for _, st := range types {
			out = append(out, Cell{
				Day:       d,
				Date:      days[d],
				ShiftType: st,
				Shifts:    v.Cell(d, st),
			})
		}
	}
	return out
}

// Count returns the number of shifts placed in cells
func (v WeekView) Count() int {
	n := 0
	for _, day := range v.cells {
		for _, cell := range day {
			n += len(cell)
		}
	}
	return n
}

// Find returns the cell holding the shift with id
func (v WeekView) Find(id uint) (int, models.ShiftType, bool) {
	types := shifttype.Types()
	for d, day := range v.cells {
		for col, cell := range day {
			for _, s := range cell {
				if s.ID == id {
					return d, types[col], true
				}
			}
		}
	}
	return -1, "", false
}

// Shifts returns every placed shift, day by day
func (v WeekView) Shifts() []models.Shift {
	var out []models.Shift
	for _, day := range v.cells {
		for _, cell := range day {
			out = append(out, cell...)
		}
	}
	return out
}

package week

import (
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
)

// Window is the Monday-start seven day span containing an anchor date
type Window struct {
	Start models.Date
}

// Of returns the window containing anchor, computed in anchor's location
func Of(anchor time.Time) Window {
	day := models.NewDate(anchor)
	// time.Weekday starts on Sunday; shift so Monday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	return Window{Start: models.NewDate(day.AddDate(0, 0, -offset))}
}

// Days returns the seven dates of the window, Monday first
func (w Window) Days() [7]models.Date {
	var days [7]models.Date
	for i := range days {
		days[i] = models.NewDate(w.Start.AddDate(0, 0, i))
	}
	return days
}

// End returns the Sunday of the window
func (w Window) End() models.Date {
	return models.NewDate(w.Start.AddDate(0, 0, 6))
}

// Index returns the day offset of d inside the window
func (w Window) Index(d models.Date) (int, bool) {
	for i, day := range w.Days() {
		if day.SameDay(d) {
			return i, true
		}
	}
	return -1, false
}

// Contains reports whether d falls inside the window
func (w Window) Contains(d models.Date) bool {
	_, ok := w.Index(d)
	return ok
}

// Next and Prev move by one week
func (w Window) Next() Window { return Window{Start: models.NewDate(w.Start.AddDate(0, 0, 7))} }
func (w Window) Prev() Window { return Window{Start: models.NewDate(w.Start.AddDate(0, 0, -7))} }

// Bounds returns the first and last storage keys of the window
func (w Window) Bounds() (string, string) {
	return w.Start.Key(), w.End().Key()
}

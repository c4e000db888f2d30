package scheduler

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/shifttype"
)

// Demand is the headcount wanted per shift type on every day
type Demand map[models.ShiftType]int

// HourCaps limits weekly hours per position category. A missing or zero
// entry means no cap.
type HourCaps map[models.Position]float64

// Slot is one (day, shift type) cell
type Slot struct {
	Date      models.Date
	ShiftType models.ShiftType
}

func (s Slot) key() string {
	return s.Date.Key() + "/" + string(s.ShiftType)
}

// Candidate is an employee with the hours already booked this week
type Candidate struct {
	Employee       models.Employee
	MaxHours       float64
	AssignedHours  float64
	AssignedShifts []Slot
}

// ConflictReason represents why a slot could not be filled
type ConflictReason struct {
	Date      string           `json:"date"`
	ShiftType models.ShiftType `json:"shift_type"`
	Reasons   []string         `json:"reasons"`
}

// Result is the outcome of a suggestion run
type Result struct {
	Proposals     []models.NewShift `json:"proposals"`
	Conflicts     []ConflictReason  `json:"conflicts,omitempty"`
	FairnessScore float64           `json:"fairness_score"`
	Hours         map[uint]float64  `json:"hours"`
}

// Scheduler handles the logic of proposing employees for open slots
type Scheduler struct {
	Candidates map[uint]*Candidate
	Days       []models.Date
	Demand     Demand
	Proposals  []models.NewShift
	Conflicts  []ConflictReason

	filled map[string]int
}

// NewScheduler creates a new scheduler instance over the given days
func NewScheduler(employees []models.Employee, caps HourCaps, days []models.Date, demand Demand) *Scheduler {
	candidates := make(map[uint]*Candidate, len(employees))
	for _, e := range employees {
		candidates[e.ID] = &Candidate{Employee: e, MaxHours: caps[e.Position]}
	}
	return &Scheduler{
		Candidates: candidates,
		Days:       days,
		Demand:     demand,
		filled:     make(map[string]int),
	}
}

// Prefill records existing assignments
func (s *Scheduler) Prefill(shifts []models.Shift) {
	for _, sh := range shifts {
		slot := Slot{Date: sh.Date, ShiftType: sh.ShiftType}
		s.filled[slot.key()]++

		if c, ok := s.Candidates[sh.EmployeeID]; ok {
			c.AssignedShifts = append(c.AssignedShifts, slot)
			c.AssignedHours += s.DurationHours(sh.ShiftType)
		}
	}
}

// DurationHours returns the length of a shift type in hours
func (s *Scheduler) DurationHours(st models.ShiftType) float64 {
	info, ok := shifttype.Lookup(st)
	if !ok {
		return 0
	}
	return info.Hours()
}

// Overlap checks if two time ranges overlap
func Overlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// WouldOverlap checks if a candidate's booked shifts overlap with slot
func (s *Scheduler) WouldOverlap(c *Candidate, slot Slot) bool {
	start, end, ok := shifttype.Window(slot.ShiftType, slot.Date)
	if !ok {
		return false
	}
	for _, booked := range c.AssignedShifts {
		bStart, bEnd, ok := shifttype.Window(booked.ShiftType, booked.Date)
		if ok && Overlap(bStart, bEnd, start, end) {
			return true
		}
	}
	return false
}

// Allows checks if a candidate may work the slot's shift type
func (s *Scheduler) Allows(slot Slot, c *Candidate) bool {
	return shifttype.Eligible(slot.ShiftType, c.Employee.Position)
}

func (s *Scheduler) fitsHours(c *Candidate, duration float64) bool {
	return c.MaxHours <= 0 || c.AssignedHours+duration <= c.MaxHours
}

// sortedCandidates returns candidates ordered by employee id
func (s *Scheduler) sortedCandidates() []*Candidate {
	out := make([]*Candidate, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Employee.ID < out[j].Employee.ID })
	return out
}

// AssignSimple implements a greedy least-hours assignment over open slots
func (s *Scheduler) AssignSimple(shuffle bool) {
	var slots []Slot
	for _, day := range s.Days {
		for _, st := range shifttype.Types() {
			slot := Slot{Date: day, ShiftType: st}
			needed := s.Demand[st] - s.filled[slot.key()]
			for i := 0; i < needed; i++ {
				slots = append(slots, slot)
			}
		}
	}

	if shuffle && len(slots) > 0 {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		r.Shuffle(len(slots), func(i, j int) {
			slots[i], slots[j] = slots[j], slots[i]
		})
	}

	candidates := s.sortedCandidates()

	for _, slot := range slots {
		duration := s.DurationHours(slot.ShiftType)

		var best *Candidate
		maxHoursCount := 0
		overlapCount := 0
		disallowedCount := 0

		for _, c := range candidates {
			isAllowed := s.Allows(slot, c)
			fitsHours := s.fitsHours(c, duration)
			noOverlap := !s.WouldOverlap(c, slot)

			if isAllowed && fitsHours && noOverlap {
				if best == nil || c.AssignedHours < best.AssignedHours {
					best = c
				}
				continue
			}
			if !isAllowed {
				disallowedCount++
				continue
			}
			if !fitsHours {
				maxHoursCount++
			}
			if !noOverlap {
				overlapCount++
			}
		}

		if best != nil {
			best.AssignedHours += duration
			best.AssignedShifts = append(best.AssignedShifts, slot)
			s.filled[slot.key()]++
			s.Proposals = append(s.Proposals, models.NewShift{
				EmployeeID: best.Employee.ID,
				Date:       slot.Date,
				ShiftType:  slot.ShiftType,
			})
			continue
		}

		var reasons []string
		if maxHoursCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees were at max hours", maxHoursCount))
		}
		if overlapCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees had overlapping shifts", overlapCount))
		}
		if disallowedCount > 0 {
			reasons = append(reasons, fmt.Sprintf("%d employees were not eligible for this shift type", disallowedCount))
		}
		if len(reasons) == 0 {
			reasons = append(reasons, "no employees available")
		}
		s.Conflicts = append(s.Conflicts, ConflictReason{
			Date:      slot.Date.Key(),
			ShiftType: slot.ShiftType,
			Reasons:   reasons,
		})
	}
}

// CalculateFairnessScore returns a percentage (0-100) representing how evenly
// hours are distributed across the roster. 100% is perfectly fair
// (Standard Deviation = 0).
func (s *Scheduler) CalculateFairnessScore() float64 {
	if len(s.Candidates) == 0 {
		return 100.0
	}

	var sum float64
	for _, c := range s.Candidates {
		sum += c.AssignedHours
	}
	if sum == 0 {
		return 100.0
	}

	mean := sum / float64(len(s.Candidates))

	var varianceSum float64
	for _, c := range s.Candidates {
		diff := c.AssignedHours - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(s.Candidates)))

	// 100% means SD is 0. 0% means SD is >= mean.
	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}

// Result collects proposals, conflicts and per-employee hours
func (s *Scheduler) Result() Result {
	hours := make(map[uint]float64, len(s.Candidates))
	for id, c := range s.Candidates {
		hours[id] = c.AssignedHours
	}
	return Result{
		Proposals:     append([]models.NewShift(nil), s.Proposals...),
		Conflicts:     append([]ConflictReason(nil), s.Conflicts...),
		FairnessScore: s.CalculateFairnessScore(),
		Hours:         hours,
	}
}

package scheduler

import (
	"testing"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/shifttype"
)

func monday() models.Date {
	return models.NewDate(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC))
}

func TestAssignSimple(t *testing.T) {
	employees := []models.Employee{
		{ID: 1, Name: "An", Position: models.PositionFullTime},
		{ID: 2, Name: "Bình", Position: models.PositionPartTime},
		{ID: 3, Name: "Chi", Position: models.PositionPartTime},
	}

	s := NewScheduler(employees, nil, []models.Date{monday()}, Demand{
		models.ShiftDai1:  1,
		models.ShiftNgan1: 2,
	})
	s.AssignSimple(false)

	if len(s.Proposals) != 3 {
		t.Fatalf("Expected 3 proposals, got %d", len(s.Proposals))
	}
	for _, p := range s.Proposals {
		emp := employees[p.EmployeeID-1]
		if !shifttype.Eligible(p.ShiftType, emp.Position) {
			t.Errorf("Employee %d (%s) proposed for ineligible %s", emp.ID, emp.Position, p.ShiftType)
		}
	}
	if s.Candidates[1].AssignedHours != 8.0 {
		t.Errorf("Expected full-time employee to have 8.0 hours, got %f", s.Candidates[1].AssignedHours)
	}
	if len(s.Conflicts) != 0 {
		t.Errorf("Expected no conflicts, got %v", s.Conflicts)
	}
}

func TestAssignSimple_Overlap(t *testing.T) {
	employees := []models.Employee{
		{ID: 1, Name: "An", Position: models.PositionFullTime},
	}

	// DAI1 and DAI2 do not overlap, so one person can cover both; two DAI1
	// seats on the same day cannot be held by the same person.
	s := NewScheduler(employees, nil, []models.Date{monday()}, Demand{models.ShiftDai1: 2})
	s.AssignSimple(false)

	if len(s.Proposals) != 1 {
		t.Errorf("Expected only 1 proposal due to overlap, got %d", len(s.Proposals))
	}
	if len(s.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(s.Conflicts))
	}
}

func TestAssignSimple_PrefillAndCaps(t *testing.T) {
	employees := []models.Employee{
		{ID: 1, Name: "Bình", Position: models.PositionPartTime},
		{ID: 2, Name: "Chi", Position: models.PositionPartTime},
	}
	day := monday()

	s := NewScheduler(employees, HourCaps{models.PositionPartTime: 4}, []models.Date{day}, Demand{
		models.ShiftNgan1: 1,
		models.ShiftNgan2: 2,
	})
	s.Prefill([]models.Shift{{ID: 9, EmployeeID: 1, Date: day, ShiftType: models.ShiftNgan1}})
	s.AssignSimple(false)

	// NGAN1 is already covered; employee 1 is at the cap, so only employee 2
	// can take one NGAN2 seat.
	if len(s.Proposals) != 1 || s.Proposals[0].EmployeeID != 2 {
		t.Fatalf("Expected a single proposal for employee 2, got %+v", s.Proposals)
	}
	if len(s.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(s.Conflicts))
	}
}

func TestCalculateFairnessScore(t *testing.T) {
	s := NewScheduler(nil, nil, nil, nil)
	if s.CalculateFairnessScore() != 100.0 {
		t.Errorf("Expected 100 for empty roster")
	}

	s = NewScheduler([]models.Employee{
		{ID: 1, Position: models.PositionPartTime},
		{ID: 2, Position: models.PositionPartTime},
	}, nil, nil, nil)
	s.Candidates[1].AssignedHours = 8
	s.Candidates[2].AssignedHours = 8
	if s.CalculateFairnessScore() != 100.0 {
		t.Errorf("Expected 100 for equal hours, got %f", s.CalculateFairnessScore())
	}

	s.Candidates[2].AssignedHours = 0
	if s.CalculateFairnessScore() != 0.0 {
		t.Errorf("Expected 0 when SD equals mean, got %f", s.CalculateFairnessScore())
	}
}

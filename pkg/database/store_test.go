package database

import (
	"context"
	"testing"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/week"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(Options{Path: MemoryPath})
	require.NoError(t, err)
	return NewStore(db, time.UTC)
}

func day(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s, time.UTC)
	require.NoError(t, err)
	return d
}

func TestCreateShift_Eligibility(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	full, err := s.CreateEmployee(ctx, models.Employee{Name: "An", Position: models.PositionFullTime})
	require.NoError(t, err)
	part, err := s.CreateEmployee(ctx, models.Employee{Name: "Bình", Position: models.PositionPartTime})
	require.NoError(t, err)

	_, err = s.CreateShift(ctx, models.NewShift{EmployeeID: part.ID, Date: day(t, "2024-05-17"), ShiftType: models.ShiftDai1})
	assert.ErrorIs(t, err, ErrIneligible)

	_, err = s.CreateShift(ctx, models.NewShift{EmployeeID: full.ID, Date: day(t, "2024-05-17"), ShiftType: "NIGHT"})
	assert.ErrorIs(t, err, ErrShiftType)

	_, err = s.CreateShift(ctx, models.NewShift{EmployeeID: 999, Date: day(t, "2024-05-17"), ShiftType: models.ShiftNgan1})
	assert.ErrorIs(t, err, ErrNotFound)

	sh, err := s.CreateShift(ctx, models.NewShift{EmployeeID: part.ID, Date: day(t, "2024-05-17"), ShiftType: models.ShiftNgan2})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-17T00:00:00", sh.Date.String())
	assert.Nil(t, sh.TimeIn)
}

func TestShiftsInWeek_And_ScheduledOn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateEmployee(ctx, models.Employee{Name: "An", Position: models.PositionFullTime})
	b, _ := s.CreateEmployee(ctx, models.Employee{Name: "Bình", Position: models.PositionPartTime})
	_, _ = s.CreateEmployee(ctx, models.Employee{Name: "Chi", Position: models.PositionPartTime})

	for _, in := range []models.NewShift{
		{EmployeeID: a.ID, Date: day(t, "2024-05-12"), ShiftType: models.ShiftDai1}, // previous Sunday
		{EmployeeID: a.ID, Date: day(t, "2024-05-13"), ShiftType: models.ShiftDai1},
		{EmployeeID: b.ID, Date: day(t, "2024-05-15"), ShiftType: models.ShiftNgan3},
		{EmployeeID: b.ID, Date: day(t, "2024-05-19"), ShiftType: models.ShiftNgan4},
		{EmployeeID: a.ID, Date: day(t, "2024-05-20"), ShiftType: models.ShiftDai2}, // next Monday
	} {
		_, err := s.CreateShift(ctx, in)
		require.NoError(t, err)
	}

	shifts, err := s.ShiftsInWeek(ctx, week.Of(time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Len(t, shifts, 3)
	assert.Equal(t, "2024-05-13", shifts[0].Date.Key())
	assert.Equal(t, "2024-05-19", shifts[2].Date.Key())

	scheduled, err := s.ScheduledOn(ctx, day(t, "2024-05-15"))
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "Bình", scheduled[0].Name)
}

func TestUpdateShiftTime_OverwritesAndTallies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, _ := s.CreateEmployee(ctx, models.Employee{Name: "An", Position: models.PositionFullTime})
	sh, err := s.CreateShift(ctx, models.NewShift{EmployeeID: e.ID, Date: day(t, "2024-05-15"), ShiftType: models.ShiftDai1})
	require.NoError(t, err)

	first := time.Date(2024, 5, 15, 6, 1, 0, 0, time.UTC)
	second := first.Add(3 * time.Minute)

	_, err = s.UpdateShiftTime(ctx, sh.ID, models.TimeIn, first)
	require.NoError(t, err)
	updated, err := s.UpdateShiftTime(ctx, sh.ID, models.TimeIn, second)
	require.NoError(t, err)
	require.NotNil(t, updated.TimeIn)
	assert.True(t, updated.TimeIn.Equal(second))
	assert.Nil(t, updated.TimeOut)

	_, err = s.UpdateShiftTime(ctx, sh.ID, models.TimeOut, second.Add(8*time.Hour))
	require.NoError(t, err)

	stored, err := s.Shift(ctx, sh.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TimeIn)
	require.NotNil(t, stored.TimeOut)
	assert.True(t, stored.TimeIn.Equal(second))

	tallies, err := s.Tallies(ctx, day(t, "2024-05-15"))
	require.NoError(t, err)
	require.Len(t, tallies, 1)
	assert.Equal(t, 2, tallies[0].ClockIns)
	assert.Equal(t, 1, tallies[0].ClockOuts)

	_, err = s.UpdateShiftTime(ctx, 999, models.TimeIn, first)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteShift(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e, _ := s.CreateEmployee(ctx, models.Employee{Name: "An", Position: models.PositionFullTime})
	sh, err := s.CreateShift(ctx, models.NewShift{EmployeeID: e.ID, Date: day(t, "2024-05-15"), ShiftType: models.ShiftDai2})
	require.NoError(t, err)

	require.NoError(t, s.DeleteShift(ctx, sh.ID))
	assert.ErrorIs(t, s.DeleteShift(ctx, sh.ID), ErrNotFound)
}

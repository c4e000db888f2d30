package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/shifttype"
	"github.com/arnavshah/shiftboard-go/pkg/week"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrIneligible = errors.New("employee position is not allowed for this shift type")
	ErrShiftType  = errors.New("unknown shift type")
)

// Store is the schedule store backed by gorm
type Store struct {
	DB *gorm.DB
	// Location is used to interpret incoming dates; shifts are stored by day key.
	Location *time.Location
}

// NewStore wraps db. A nil loc means time.Local.
func NewStore(db *gorm.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{DB: db, Location: loc}
}

func (s *Store) toDate(key string) models.Date {
	d, err := models.ParseDate(key, s.Location)
	if err != nil {
		return models.Date{}
	}
	return d
}

func (s *Store) shiftFromRecord(r ShiftRecord) models.Shift {
	return models.Shift{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		Date:       s.toDate(r.Date),
		ShiftType:  models.ShiftType(r.ShiftType),
		TimeIn:     r.TimeIn,
		TimeOut:    r.TimeOut,
	}
}

func employeeFromRecord(r EmployeeRecord) models.Employee {
	return models.Employee{
		ID:       r.ID,
		Name:     r.Name,
		Position: models.Position(r.Position),
		Phone:    r.Phone,
		Email:    r.Email,
		Address:  r.Address,
		Image:    r.Image,
	}
}

// ShiftsInWeek returns every shift dated inside w ordered by date then id
func (s *Store) ShiftsInWeek(ctx context.Context, w week.Window) ([]models.Shift, error) {
	from, to := w.Bounds()
	var records []ShiftRecord
	if err := s.DB.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date asc, id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}

	shifts := make([]models.Shift, 0, len(records))
	for _, r := range records {
		shifts = append(shifts, s.shiftFromRecord(r))
	}
	return shifts, nil
}

// Shift loads one shift by id
func (s *Store) Shift(ctx context.Context, id uint) (models.Shift, error) {
	var r ShiftRecord
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Shift{}, ErrNotFound
		}
		return models.Shift{}, err
	}
	return s.shiftFromRecord(r), nil
}

// CreateShift stores a new assignment after checking the employee may work it
func (s *Store) CreateShift(ctx context.Context, in models.NewShift) (models.Shift, error) {
	if !shifttype.Known(in.ShiftType) {
		return models.Shift{}, fmt.Errorf("%w: %s", ErrShiftType, in.ShiftType)
	}

	emp, err := s.Employee(ctx, in.EmployeeID)
	if err != nil {
		return models.Shift{}, err
	}
	if !shifttype.Eligible(in.ShiftType, emp.Position) {
		return models.Shift{}, fmt.Errorf("%w: %s cannot take %s", ErrIneligible, emp.Position, in.ShiftType)
	}

	r := ShiftRecord{
		EmployeeID: in.EmployeeID,
		Date:       in.Date.Key(),
		ShiftType:  string(in.ShiftType),
	}
	if err := s.DB.WithContext(ctx).Create(&r).Error; err != nil {
		return models.Shift{}, err
	}
	return s.shiftFromRecord(r), nil
}

// DeleteShift removes a shift by id
func (s *Store) DeleteShift(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&ShiftRecord{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateShiftTime writes one attendance timestamp and counts the event.
// Existing values are overwritten.
func (s *Store) UpdateShiftTime(ctx context.Context, id uint, field models.TimeField, at time.Time) (models.Shift, error) {
	if field != models.TimeIn && field != models.TimeOut {
		return models.Shift{}, fmt.Errorf("unknown time field %q", field)
	}

	var updated ShiftRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&updated).Update(string(field), at).Error; err != nil {
			return err
		}
		return recordTally(tx, updated.EmployeeID, updated.Date, field)
	})
	if err != nil {
		return models.Shift{}, err
	}

	at = at.UTC()
	if field == models.TimeIn {
		updated.TimeIn = &at
	} else {
		updated.TimeOut = &at
	}
	return s.shiftFromRecord(updated), nil
}

// recordTally upserts the per-day counters in a single query
func recordTally(tx *gorm.DB, employeeID uint, date string, field models.TimeField) error {
	row := TallyRecord{EmployeeID: employeeID, Date: date}
	column := "clock_outs"
	if field == models.TimeIn {
		row.ClockIns = 1
		column = "clock_ins"
	} else {
		row.ClockOuts = 1
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "employee_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column: gorm.Expr(column+" + ?", 1),
		}),
	}).Create(&row).Error
}

// Tallies returns the attendance counters recorded for one day
func (s *Store) Tallies(ctx context.Context, day models.Date) ([]models.AttendanceTally, error) {
	var records []TallyRecord
	if err := s.DB.WithContext(ctx).Where("date = ?", day.Key()).Order("employee_id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]models.AttendanceTally, 0, len(records))
	for _, r := range records {
		out = append(out, models.AttendanceTally{
			Date:       r.Date,
			EmployeeID: r.EmployeeID,
			ClockIns:   r.ClockIns,
			ClockOuts:  r.ClockOuts,
		})
	}
	return out, nil
}

// Employees returns the full roster ordered by id
func (s *Store) Employees(ctx context.Context) ([]models.Employee, error) {
	var records []EmployeeRecord
	if err := s.DB.WithContext(ctx).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]models.Employee, 0, len(records))
	for _, r := range records {
		out = append(out, employeeFromRecord(r))
	}
	return out, nil
}

// Employee loads one employee by id
func (s *Store) Employee(ctx context.Context, id uint) (models.Employee, error) {
	var r EmployeeRecord
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Employee{}, ErrNotFound
		}
		return models.Employee{}, err
	}
	return employeeFromRecord(r), nil
}

// CreateEmployee adds an employee to the roster
func (s *Store) CreateEmployee(ctx context.Context, e models.Employee) (models.Employee, error) {
	if !e.Position.Valid() {
		return models.Employee{}, fmt.Errorf("invalid position %q", e.Position)
	}
	r := EmployeeRecord{
		Name:     e.Name,
		Position: string(e.Position),
		Phone:    e.Phone,
		Email:    e.Email,
		Address:  e.Address,
		Image:    e.Image,
	}
	if err := s.DB.WithContext(ctx).Create(&r).Error; err != nil {
		return models.Employee{}, err
	}
	return employeeFromRecord(r), nil
}

// ScheduledOn returns the employees holding at least one shift on day
func (s *Store) ScheduledOn(ctx context.Context, day models.Date) ([]models.Employee, error) {
	var records []EmployeeRecord
	sub := s.DB.Model(&ShiftRecord{}).Select("employee_id").Where("date = ?", day.Key())
	if err := s.DB.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]models.Employee, 0, len(records))
	for _, r := range records {
		out = append(out, employeeFromRecord(r))
	}
	return out, nil
}

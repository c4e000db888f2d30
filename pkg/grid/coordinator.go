package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/scheduler"
	"github.com/arnavshah/shiftboard-go/pkg/shifttype"
	"github.com/arnavshah/shiftboard-go/pkg/week"
	"github.com/go-playground/validator/v10"
)

// Store is the part of the schedule store the grid needs
type Store interface {
	ShiftsForWeek(ctx context.Context, day models.Date) ([]models.Shift, error)
	Employee(ctx context.Context, id uint) (models.Employee, error)
	Employees(ctx context.Context) ([]models.Employee, error)
	CreateShift(ctx context.Context, in models.NewShift) (models.Shift, error)
	DeleteShift(ctx context.Context, id uint) error
}

// Confirmer asks the manager a blocking yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// State is the coordinator's position in the assignment workflow
type State int

const (
	Idle State = iota
	Loading
	AssigningEmployee
	Submitting
	RemovingAssignment
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case AssigningEmployee:
		return "assigning_employee"
	case Submitting:
		return "submitting"
	case RemovingAssignment:
		return "removing_assignment"
	}
	return "unknown"
}

var (
	// ErrStale means a newer load superseded this one; its result was dropped.
	ErrStale        = errors.New("superseded by a newer request")
	ErrIneligible   = errors.New("employee is not eligible for this shift type")
	ErrNoCandidate  = errors.New("no employee selected")
	ErrNotAssigning = errors.New("no assignment in progress")
	ErrBusy         = errors.New("another change is being submitted")
	ErrShiftType    = errors.New("unknown shift type")
)

// Picker is the open employee-picker for one cell
type Picker struct {
	Date       models.Date
	ShiftType  models.ShiftType
	Candidates []models.Employee
	Selected   *models.Employee
}

func (p *Picker) clone() *Picker {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Candidates = append([]models.Employee(nil), p.Candidates...)
	if p.Selected != nil {
		sel := *p.Selected
		cp.Selected = &sel
	}
	return &cp
}

// Snapshot is a consistent copy of everything needed to render the grid
type Snapshot struct {
	State     State
	View      WeekView
	Employees map[uint]models.Employee
	Picker    *Picker
	Detail    *models.Shift
	// LoadError is set when the last week load failed; the grid is empty.
	LoadError error
	// ActionError is set when the last create or delete failed.
	ActionError error
}

// Label returns the display name for an employee id
func (s Snapshot) Label(id uint) string {
	return labelFor(s.Employees, id)
}

func labelFor(employees map[uint]models.Employee, id uint) string {
	if e, ok := employees[id]; ok && e.Name != "" {
		return e.Name
	}
	return "Nhân viên #" + strconv.FormatUint(uint64(id), 10)
}

// Coordinator presents and mutates one week of shift assignments
type Coordinator struct {
	store    Store
	confirm  Confirmer
	log      *slog.Logger
	loc      *time.Location
	validate *validator.Validate
	caps     scheduler.HourCaps

	mu        sync.Mutex
	state     State
	epoch     uint64
	window    week.Window
	view      WeekView
	employees map[uint]models.Employee
	roster    []models.Employee
	picker    *Picker
	detail    *models.Shift
	loadErr   error
	actionErr error
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithLocation sets the timezone weeks are computed in
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) { c.loc = loc }
}

// WithHourCaps sets weekly hour limits used by Suggest
func WithHourCaps(caps scheduler.HourCaps) Option {
	return func(c *Coordinator) { c.caps = caps }
}

// New creates a coordinator. A nil confirmer declines every removal.
func New(store Store, confirm Confirmer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		confirm:   confirm,
		log:       slog.Default(),
		loc:       time.Local,
		validate:  validator.New(),
		employees: map[uint]models.Employee{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.window = week.Of(time.Now().In(c.loc))
	c.view = NewWeekView(c.window, nil)
	return c
}

// Snapshot returns a copy of the current render state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	employees := make(map[uint]models.Employee, len(c.employees))
	for id, e := range c.employees {
		employees[id] = e
	}
	var detail *models.Shift
	if c.detail != nil {
		d := *c.detail
		detail = &d
	}
	return Snapshot{
		State:       c.state,
		View:        c.view,
		Employees:   employees,
		Picker:      c.picker.clone(),
		Detail:      detail,
		LoadError:   c.loadErr,
		ActionError: c.actionErr,
	}
}

// State returns the current workflow state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EmployeeLabel returns the name of a loaded employee or a fallback label
func (c *Coordinator) EmployeeLabel(id uint) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return labelFor(c.employees, id)
}

// LoadWeek fetches the Monday-start week containing anchor and rebuilds the
// grid. Only the most recently issued load is applied; earlier ones return
// ErrStale.
func (c *Coordinator) LoadWeek(ctx context.Context, anchor time.Time) error {
	w := week.Of(anchor.In(c.loc))

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.state = Loading
	c.window = w
	c.picker = nil
	c.mu.Unlock()

	log := c.log.With("week", w.Start.Key(), "epoch", epoch)

	shifts, err := c.store.ShiftsForWeek(ctx, w.Start)
	if err != nil {
		log.Error("load week shifts failed", "error", err)

		c.mu.Lock()
		defer c.mu.Unlock()
		if epoch != c.epoch {
			return ErrStale
		}
		c.view = NewWeekView(w, nil)
		c.employees = map[uint]models.Employee{}
		c.loadErr = err
		c.finishLoading()
		return fmt.Errorf("load week %s: %w", w.Start.Key(), err)
	}

	// Employee ids come from the shifts, so this strictly follows the fetch above.
	employees := make(map[uint]models.Employee)
	for _, s := range shifts {
		if _, seen := employees[s.EmployeeID]; seen {
			continue
		}
		e, err := c.store.Employee(ctx, s.EmployeeID)
		if err != nil {
			log.Warn("load employee failed", "employee_id", s.EmployeeID, "error", err)
			// remember the miss so the id is requested only once
			employees[s.EmployeeID] = models.Employee{ID: s.EmployeeID}
			continue
		}
		employees[s.EmployeeID] = e
	}

	view := NewWeekView(w, shifts)
	for _, s := range view.Unplaced {
		log.Warn("shift outside week grid", "shift_id", s.ID, "date", s.Date.Key(), "shift_type", s.ShiftType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		log.Debug("discarding superseded week load")
		return ErrStale
	}
	c.view = view
	c.employees = employees
	c.loadErr = nil
	c.finishLoading()
	log.Info("week loaded", "shifts", view.Count(), "employees", len(employees))
	return nil
}

// finishLoading returns to Idle unless the manager already started another
// interaction while the load was in flight. Callers hold c.mu.
func (c *Coordinator) finishLoading() {
	if c.state == Loading {
		c.state = Idle
	}
}

// Reload refreshes the week currently displayed
func (c *Coordinator) Reload(ctx context.Context) error {
	c.mu.Lock()
	start := c.window.Start
	c.mu.Unlock()
	return c.LoadWeek(ctx, start.Time)
}

// NextWeek and PrevWeek navigate relative to the displayed week
func (c *Coordinator) NextWeek(ctx context.Context) error {
	c.mu.Lock()
	start := c.window.Next().Start
	c.mu.Unlock()
	return c.LoadWeek(ctx, start.Time)
}

func (c *Coordinator) PrevWeek(ctx context.Context) error {
	c.mu.Lock()
	start := c.window.Prev().Start
	c.mu.Unlock()
	return c.LoadWeek(ctx, start.Time)
}

// loadRoster returns the cached roster, fetching it on first use
func (c *Coordinator) loadRoster(ctx context.Context) ([]models.Employee, error) {
	c.mu.Lock()
	roster := c.roster
	c.mu.Unlock()
	if roster != nil {
		return roster, nil
	}

	roster, err := c.store.Employees(ctx)
	if err != nil {
		return nil, err
	}
	if roster == nil {
		roster = []models.Employee{}
	}

	c.mu.Lock()
	c.roster = roster
	c.mu.Unlock()
	return roster, nil
}

// OpenAssignment opens the employee picker for one cell. Candidates are
// limited to employees eligible for shiftType.
func (c *Coordinator) OpenAssignment(ctx context.Context, date time.Time, shiftType models.ShiftType) error {
	if !shifttype.Known(shiftType) {
		return fmt.Errorf("%w: %s", ErrShiftType, shiftType)
	}

	picker := &Picker{Date: models.NewDate(date.In(c.loc)), ShiftType: shiftType}

	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = AssigningEmployee
	c.picker = picker
	c.actionErr = nil
	c.mu.Unlock()

	roster, err := c.loadRoster(ctx)
	if err != nil {
		c.log.Error("load employees failed", "error", err)
		c.mu.Lock()
		if c.picker == picker {
			c.actionErr = err
		}
		c.mu.Unlock()
		return fmt.Errorf("load employees: %w", err)
	}

	candidates := shifttype.FilterEligible(shiftType, roster)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.picker != picker {
		return ErrStale
	}
	picker.Candidates = candidates
	return nil
}

// Candidates returns the eligible employees for the open picker
func (c *Coordinator) Candidates() []models.Employee {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.picker == nil {
		return nil
	}
	return append([]models.Employee(nil), c.picker.Candidates...)
}

// SelectCandidate chooses the employee to assign
func (c *Coordinator) SelectCandidate(e models.Employee) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != AssigningEmployee || c.picker == nil {
		return ErrNotAssigning
	}
	if !shifttype.Eligible(c.picker.ShiftType, e.Position) {
		return fmt.Errorf("%w: %s cannot take %s", ErrIneligible, e.Position, c.picker.ShiftType)
	}
	sel := e
	c.picker.Selected = &sel
	return nil
}

// CancelAssignment closes the picker without changes
func (c *Coordinator) CancelAssignment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == AssigningEmployee {
		c.state = Idle
		c.picker = nil
	}
}

// ConfirmAssignment creates the selected shift and reloads the week. On
// failure the picker stays open.
func (c *Coordinator) ConfirmAssignment(ctx context.Context) error {
	c.mu.Lock()
	if c.state != AssigningEmployee || c.picker == nil {
		c.mu.Unlock()
		return ErrNotAssigning
	}
	if c.picker.Selected == nil {
		c.mu.Unlock()
		return ErrNoCandidate
	}
	draft := models.NewShift{
		EmployeeID: c.picker.Selected.ID,
		Date:       models.NewDate(c.picker.Date.Time),
		ShiftType:  c.picker.ShiftType,
	}
	if err := c.validate.Struct(draft); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("invalid assignment: %w", err)
	}
	c.state = Submitting
	c.mu.Unlock()

	log := c.log.With("employee_id", draft.EmployeeID, "date", draft.Date.Key(), "shift_type", draft.ShiftType)

	if _, err := c.store.CreateShift(ctx, draft); err != nil {
		log.Error("create shift failed", "error", err)
		c.mu.Lock()
		c.state = AssigningEmployee
		c.actionErr = err
		c.mu.Unlock()
		return fmt.Errorf("create shift: %w", err)
	}
	log.Info("shift created")

	c.mu.Lock()
	c.picker = nil
	c.actionErr = nil
	c.mu.Unlock()

	return c.reloadAfterChange(ctx)
}

// reloadAfterChange refreshes the grid; being superseded by a newer
// navigation is not an error for the change itself.
func (c *Coordinator) reloadAfterChange(ctx context.Context) error {
	if err := c.Reload(ctx); err != nil && !errors.Is(err, ErrStale) {
		return err
	}
	return nil
}

// RemoveAssignment deletes a shift after the manager confirms
func (c *Coordinator) RemoveAssignment(ctx context.Context, shift models.Shift) error {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = RemovingAssignment
	c.picker = nil
	prompt := c.removalPrompt(shift)
	c.mu.Unlock()

	if c.confirm == nil || !c.confirm.Confirm(ctx, prompt) {
		c.mu.Lock()
		if c.state == RemovingAssignment {
			c.state = Idle
		}
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.state = Submitting
	c.mu.Unlock()

	log := c.log.With("shift_id", shift.ID)
	if err := c.store.DeleteShift(ctx, shift.ID); err != nil {
		log.Error("delete shift failed", "error", err)
		c.mu.Lock()
		c.state = Idle
		c.actionErr = err
		c.mu.Unlock()
		return fmt.Errorf("delete shift: %w", err)
	}
	log.Info("shift deleted")

	c.mu.Lock()
	c.actionErr = nil
	if c.detail != nil && c.detail.ID == shift.ID {
		c.detail = nil
	}
	c.mu.Unlock()

	return c.reloadAfterChange(ctx)
}

func (c *Coordinator) removalPrompt(s models.Shift) string {
	label := string(s.ShiftType)
	if info, ok := shifttype.Lookup(s.ShiftType); ok {
		label = info.Label
	}
	return fmt.Sprintf("Xóa %s của %s ngày %s?", label, labelFor(c.employees, s.EmployeeID), s.Date.Format("02/01/2006"))
}

// SelectShiftForDetail opens the read-only detail panel
func (c *Coordinator) SelectShiftForDetail(s models.Shift) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sel := s
	c.detail = &sel
}

// DismissDetail closes the detail panel
func (c *Coordinator) DismissDetail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detail = nil
}

// Suggest proposes employees for the open seats of the displayed week
func (c *Coordinator) Suggest(ctx context.Context, demand scheduler.Demand) (scheduler.Result, error) {
	roster, err := c.loadRoster(ctx)
	if err != nil {
		return scheduler.Result{}, fmt.Errorf("load employees: %w", err)
	}

	c.mu.Lock()
	days := c.window.Days()
	existing := c.view.Shifts()
	c.mu.Unlock()

	s := scheduler.NewScheduler(roster, c.caps, days[:], demand)
	s.Prefill(existing)
	s.AssignSimple(false)
	return s.Result(), nil
}

// ApplySuggestions creates every proposal and reloads the week once.
// Failed proposals are logged and reported together.
func (c *Coordinator) ApplySuggestions(ctx context.Context, res scheduler.Result) error {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = Submitting
	c.mu.Unlock()

	var errs []error
	for _, p := range res.Proposals {
		if !c.eligible(ctx, p) {
			errs = append(errs, fmt.Errorf("%w: employee %d for %s", ErrIneligible, p.EmployeeID, p.ShiftType))
			continue
		}
		if _, err := c.store.CreateShift(ctx, p); err != nil {
			c.log.Error("create suggested shift failed", "employee_id", p.EmployeeID, "date", p.Date.Key(), "shift_type", p.ShiftType, "error", err)
			errs = append(errs, err)
		}
	}

	c.mu.Lock()
	c.state = Idle
	c.actionErr = errors.Join(errs...)
	c.mu.Unlock()

	if err := c.reloadAfterChange(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) eligible(ctx context.Context, p models.NewShift) bool {
	roster, err := c.loadRoster(ctx)
	if err != nil {
		return false
	}
	for _, e := range roster {
		if e.ID == p.EmployeeID {
			return shifttype.Eligible(p.ShiftType, e.Position)
		}
	}
	return false
}

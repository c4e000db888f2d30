package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/facematch"
	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/google/uuid"
)

// Threshold is the confidence a match must exceed to be trusted
const Threshold = 80.0

// User-facing messages
const (
	MsgCameraNotReady    = "Camera chưa sẵn sàng, vui lòng thử lại"
	MsgCameraUnavailable = "Không thể mở camera"
	MsgLowConfidence     = "Độ tin cậy thấp, vui lòng thử lại"
	MsgNoMatch           = "Không có trong hệ thống"
	MsgCaptureFailed     = "Lỗi nhận diện khuôn mặt, vui lòng thử lại"
	MsgClockFailed       = "lỗi khi điểm danh"
)

var (
	ErrCameraNotReady = errors.New("camera not ready")
	ErrCameraOff      = errors.New("camera is not on")
	ErrNotMatched     = errors.New("no matched employee")
	ErrNoShift        = errors.New("no shift today for matched employee")
	ErrClockFailed    = errors.New(MsgClockFailed)
	ErrStale          = errors.New("attempt was reset")
)

// Store is the part of the schedule store attendance needs
type Store interface {
	ScheduledEmployees(ctx context.Context, day models.Date) ([]models.Employee, error)
	ShiftsForWeek(ctx context.Context, day models.Date) ([]models.Shift, error)
	UpdateShiftTime(ctx context.Context, id uint, field models.TimeField, at time.Time) error
}

// Recognizer submits a JPEG frame to the face-matching service
type Recognizer interface {
	Match(ctx context.Context, jpeg []byte) (models.MatchResult, error)
}

// State of the capture loop
type State int

const (
	CameraOff State = iota
	CameraOn
	Capturing
	Recognizing
	AwaitingAction
	LowConfidence
	NoMatch
	CaptureFailed
	InRecorded
	OutRecorded
)

func (s State) String() string {
	switch s {
	case CameraOff:
		return "camera_off"
	case CameraOn:
		return "camera_on"
	case Capturing:
		return "capturing"
	case Recognizing:
		return "recognizing"
	case AwaitingAction:
		return "awaiting_action"
	case LowConfidence:
		return "low_confidence"
	case NoMatch:
		return "no_match"
	case CaptureFailed:
		return "capture_failed"
	case InRecorded:
		return "in_recorded"
	case OutRecorded:
		return "out_recorded"
	}
	return "unknown"
}

// Terminal reports whether s is a failure state that only Retry leaves
func (s State) Terminal() bool {
	return s == LowConfidence || s == NoMatch || s == CaptureFailed
}

// Outcome is the verdict of one capture attempt
type Outcome string

const (
	OutcomeMatched       Outcome = "matched"
	OutcomeLowConfidence Outcome = "low_confidence"
	OutcomeNoMatch       Outcome = "no_match"
	OutcomeCaptureFailed Outcome = "capture_failed"
)

// Attempt is one capture and its recognition result
type Attempt struct {
	ID         uuid.UUID
	Frame      []byte
	Confidence float64
	UserID     *uint
	Outcome    Outcome
	Employee   *models.Employee
	Err        error
}

func (a *Attempt) clone() *Attempt {
	if a == nil {
		return nil
	}
	cp := *a
	if a.UserID != nil {
		id := *a.UserID
		cp.UserID = &id
	}
	if a.Employee != nil {
		e := *a.Employee
		cp.Employee = &e
	}
	return &cp
}

// Classify applies the confidence gate and the scheduled-today check
func Classify(res models.MatchResult, scheduled []models.Employee) (Outcome, *models.Employee) {
	if res.Confidence <= Threshold {
		return OutcomeLowConfidence, nil
	}
	if res.UserID == nil {
		return OutcomeNoMatch, nil
	}
	for _, e := range scheduled {
		if e.ID == *res.UserID {
			emp := e
			return OutcomeMatched, &emp
		}
	}
	return OutcomeNoMatch, nil
}

// Record is a stored clock-in or clock-out
type Record struct {
	ShiftID    uint
	EmployeeID uint
	Field      models.TimeField
	At         time.Time
}

// Snapshot is a copy of the matcher's render state
type Snapshot struct {
	State   State
	Attempt *Attempt
	// Message is the inline status text for the current state.
	Message string
	// Alert is set when a clock write failed and must be acknowledged.
	Alert string
	// CameraHeld reports whether a stream is currently acquired.
	CameraHeld bool
}

// Matcher drives capture -> recognise -> confirm -> record
type Matcher struct {
	store      Store
	recognizer Recognizer
	log        *slog.Logger
	now        func() time.Time
	loc        *time.Location
	encode     facematch.EncodeOptions

	mu      sync.Mutex
	cam     lease
	state   State
	epoch   uint64
	active  bool
	hidden  bool
	attempt *Attempt
	message string
	alert   string
}

// Option configures a Matcher
type Option func(*Matcher)

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) { m.log = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// WithLocation sets the timezone that decides "today"
func WithLocation(loc *time.Location) Option {
	return func(m *Matcher) { m.loc = loc }
}

// WithEncodeOptions controls frame downscaling and JPEG quality
func WithEncodeOptions(o facematch.EncodeOptions) Option {
	return func(m *Matcher) { m.encode = o }
}

// NewMatcher creates a matcher in CameraOff
func NewMatcher(store Store, recognizer Recognizer, camera Camera, opts ...Option) *Matcher {
	m := &Matcher{
		store:      store,
		recognizer: recognizer,
		log:        slog.Default(),
		now:        time.Now,
		loc:        time.Local,
		encode:     facematch.EncodeOptions{MaxSide: 640, Quality: 90},
		cam:        lease{camera: camera},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a copy of the current state
func (m *Matcher) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:      m.state,
		Attempt:    m.attempt.clone(),
		Message:    m.message,
		Alert:      m.alert,
		CameraHeld: m.cam.held(),
	}
}

// State returns the current state
func (m *Matcher) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// reset clears the attempt and invalidates anything in flight. Callers hold m.mu.
func (m *Matcher) reset() {
	m.epoch++
	m.attempt = nil
	m.message = ""
	m.alert = ""
}

// startCamera acquires a fresh stream. Callers hold m.mu.
func (m *Matcher) startCamera(ctx context.Context) error {
	if err := m.cam.enter(ctx); err != nil {
		m.state = CameraOff
		m.message = MsgCameraUnavailable
		m.log.Error("camera acquire failed", "error", err)
		return fmt.Errorf("open camera: %w", err)
	}
	m.state = CameraOn
	return nil
}

// stopCamera releases the stream and returns to CameraOff. Callers hold m.mu.
func (m *Matcher) stopCamera() {
	m.cam.exit()
	m.state = CameraOff
}

// Activate is called when the attendance view is shown
func (m *Matcher) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	m.hidden = false
	m.reset()
	return m.startCamera(ctx)
}

// Deactivate is called when the view is closed or navigated away from
func (m *Matcher) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.reset()
	m.stopCamera()
}

// VisibilityChanged releases the camera while the view is hidden and
// reacquires it when the view becomes visible again.
func (m *Matcher) VisibilityChanged(ctx context.Context, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !visible {
		m.hidden = true
		m.reset()
		m.stopCamera()
		return nil
	}
	if !m.hidden {
		return nil
	}
	m.hidden = false
	if !m.active {
		return nil
	}
	return m.startCamera(ctx)
}

// Capture grabs a frame, submits it for recognition and classifies the
// result. Precondition failures return an error and leave the camera on;
// recognition outcomes are reported in the returned Attempt.
func (m *Matcher) Capture(ctx context.Context) (*Attempt, error) {
	m.mu.Lock()
	if m.state != CameraOn || !m.cam.held() {
		m.mu.Unlock()
		return nil, ErrCameraOff
	}

	w, h := m.cam.stream.Size()
	if w == 0 || h == 0 {
		m.message = MsgCameraNotReady
		m.mu.Unlock()
		return nil, ErrCameraNotReady
	}

	m.state = Capturing
	frame, err := m.cam.stream.Frame()
	var jpeg []byte
	if err == nil {
		jpeg, err = facematch.EncodeJPEG(frame, m.encode)
	}
	if err != nil {
		m.state = CameraOn
		m.message = MsgCameraNotReady
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrCameraNotReady, err)
	}

	m.epoch++
	epoch := m.epoch
	attempt := &Attempt{ID: uuid.New(), Frame: jpeg}
	m.attempt = attempt
	m.message = ""
	m.state = Recognizing
	m.mu.Unlock()

	log := m.log.With("attempt", attempt.ID.String())
	log.Info("frame submitted", "bytes", len(jpeg))

	result, err := m.recognizer.Match(ctx, jpeg)
	var scheduled []models.Employee
	if err == nil && result.Confidence > Threshold && result.UserID != nil {
		scheduled, err = m.store.ScheduledEmployees(ctx, models.NewDate(m.now().In(m.loc)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		log.Info("discarding result of reset attempt")
		return nil, ErrStale
	}

	attempt.Confidence = result.Confidence
	attempt.UserID = result.UserID

	if err != nil {
		log.Error("recognition failed", "error", err)
		attempt.Outcome = OutcomeCaptureFailed
		attempt.Err = err
		m.state = CaptureFailed
		m.message = MsgCaptureFailed
		return attempt.clone(), nil
	}

	attempt.Outcome, attempt.Employee = Classify(result, scheduled)
	switch attempt.Outcome {
	case OutcomeMatched:
		m.state = AwaitingAction
		m.message = ""
	case OutcomeLowConfidence:
		m.state = LowConfidence
		m.message = MsgLowConfidence
	default:
		m.state = NoMatch
		m.message = MsgNoMatch
	}
	log.Info("recognition finished", "outcome", attempt.Outcome, "confidence", result.Confidence)
	return attempt.clone(), nil
}

// ClockIn records the current time as time_in on the matched employee's
// first shift today.
func (m *Matcher) ClockIn(ctx context.Context) (Record, error) {
	return m.record(ctx, models.TimeIn)
}

// ClockOut records the current time as time_out. It does not require a
// prior clock-in and overwrites any earlier value.
func (m *Matcher) ClockOut(ctx context.Context) (Record, error) {
	return m.record(ctx, models.TimeOut)
}

func (m *Matcher) record(ctx context.Context, field models.TimeField) (Record, error) {
	m.mu.Lock()
	matched := m.state == AwaitingAction || m.state == InRecorded || m.state == OutRecorded
	if !matched || m.attempt == nil || m.attempt.Employee == nil {
		m.mu.Unlock()
		return Record{}, ErrNotMatched
	}
	emp := *m.attempt.Employee
	epoch := m.epoch
	m.alert = ""
	m.mu.Unlock()

	log := m.log.With("employee_id", emp.ID, "field", field)

	rec, err := m.write(ctx, emp, field)
	if err != nil {
		log.Error("attendance write failed", "error", err)
		m.mu.Lock()
		if epoch == m.epoch {
			m.alert = MsgClockFailed
		}
		m.mu.Unlock()
		return Record{}, fmt.Errorf("%w: %v", ErrClockFailed, err)
	}
	log.Info("attendance recorded", "shift_id", rec.ShiftID, "at", rec.At)

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch == m.epoch {
		if field == models.TimeIn {
			m.state = InRecorded
		} else {
			m.state = OutRecorded
		}
	}
	return rec, nil
}

func (m *Matcher) write(ctx context.Context, emp models.Employee, field models.TimeField) (Record, error) {
	now := m.now()
	today := models.NewDate(now.In(m.loc))

	shifts, err := m.store.ShiftsForWeek(ctx, today)
	if err != nil {
		return Record{}, err
	}

	var target *models.Shift
	for i := range shifts {
		if shifts[i].EmployeeID == emp.ID && shifts[i].Date.Key() == today.Key() {
			target = &shifts[i]
			break
		}
	}
	if target == nil {
		return Record{}, ErrNoShift
	}

	if err := m.store.UpdateShiftTime(ctx, target.ID, field, now); err != nil {
		return Record{}, err
	}
	return Record{ShiftID: target.ID, EmployeeID: emp.ID, Field: field, At: now}, nil
}

// DismissAlert acknowledges a failed clock write
func (m *Matcher) DismissAlert() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alert = ""
}

// Retry discards the current attempt and restarts the camera
func (m *Matcher) Retry(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	m.hidden = false
	m.reset()
	return m.startCamera(ctx)
}

// Finish ends the session after recording and releases the camera
func (m *Matcher) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	m.stopCamera()
}

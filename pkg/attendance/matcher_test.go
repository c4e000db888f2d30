package attendance

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vn      = time.FixedZone("ICT", 7*3600)
	clockAt = time.Date(2024, 6, 14, 8, 30, 0, 0, vn)
)

func uid(id uint) *uint { return &id }

type write struct {
	shiftID uint
	field   models.TimeField
	at      time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	scheduled []models.Employee
	shifts    []models.Shift
	writes    []write
	failWrite error
	failRead  error
}

func (f *fakeStore) ScheduledEmployees(ctx context.Context, day models.Date) ([]models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead != nil {
		return nil, f.failRead
	}
	return f.scheduled, nil
}

func (f *fakeStore) ShiftsForWeek(ctx context.Context, day models.Date) ([]models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shifts, nil
}

func (f *fakeStore) UpdateShiftTime(ctx context.Context, id uint, field models.TimeField, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.writes = append(f.writes, write{id, field, at})
	for i := range f.shifts {
		if f.shifts[i].ID == id {
			t := at
			if field == models.TimeIn {
				f.shifts[i].TimeIn = &t
			} else {
				f.shifts[i].TimeOut = &t
			}
		}
	}
	return nil
}

type fakeRecognizer struct {
	mu     sync.Mutex
	result models.MatchResult
	err    error
	calls  int
	gate   chan struct{}
	enter  chan struct{}
}

func (r *fakeRecognizer) Match(ctx context.Context, jpeg []byte) (models.MatchResult, error) {
	r.mu.Lock()
	r.calls++
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		r.enter <- struct{}{}
		<-gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

func (r *fakeRecognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// countingCamera tracks how many streams are live at once
type countingCamera struct {
	mu     sync.Mutex
	img    image.Image
	live   int
	max    int
	opened int
	fail   error
}

func (c *countingCamera) Open(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	c.opened++
	c.live++
	if c.live > c.max {
		c.max = c.live
	}
	return &countedStream{cam: c, img: c.img}, nil
}

func (c *countingCamera) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

type countedStream struct {
	cam  *countingCamera
	img  image.Image
	once sync.Once
}

func (s *countedStream) Size() (int, int) {
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *countedStream) Frame() (image.Image, error) { return s.img, nil }

func (s *countedStream) Stop() {
	s.once.Do(func() {
		s.cam.mu.Lock()
		s.cam.live--
		s.cam.mu.Unlock()
	})
}

func testFrame() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.NRGBA{uint8(x * 8), uint8(y * 10), 90, 255})
		}
	}
	return img
}

func newTestMatcher(store *fakeStore, rec *fakeRecognizer, cam Camera) *Matcher {
	return NewMatcher(store, rec, cam,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithLocation(vn),
		WithClock(func() time.Time { return clockAt }),
	)
}

func todayShifts() []models.Shift {
	today := models.NewDate(clockAt)
	yesterday := models.NewDate(clockAt.AddDate(0, 0, -1))
	return []models.Shift{
		{ID: 1, EmployeeID: 7, Date: yesterday, ShiftType: models.ShiftNgan1},
		{ID: 2, EmployeeID: 3, Date: today, ShiftType: models.ShiftDai1},
		{ID: 3, EmployeeID: 7, Date: today, ShiftType: models.ShiftNgan1},
		{ID: 4, EmployeeID: 7, Date: today, ShiftType: models.ShiftNgan3},
	}
}

func TestClassify_Threshold(t *testing.T) {
	scheduled := []models.Employee{{ID: 7, Name: "Lan"}}
	cases := []struct {
		confidence float64
		id         *uint
		want       Outcome
	}{
		{80, uid(7), OutcomeLowConfidence},
		{79.99, uid(7), OutcomeLowConfidence},
		{80.0001, uid(7), OutcomeMatched},
		{81, uid(7), OutcomeMatched},
		{95, uid(9), OutcomeNoMatch},
		{95, nil, OutcomeNoMatch},
		{40, nil, OutcomeLowConfidence},
	}
	for _, c := range cases {
		got, emp := Classify(models.MatchResult{Confidence: c.confidence, UserID: c.id}, scheduled)
		assert.Equal(t, c.want, got, "confidence %v", c.confidence)
		if c.want == OutcomeMatched {
			require.NotNil(t, emp)
			assert.Equal(t, uint(7), emp.ID)
		} else {
			assert.Nil(t, emp)
		}
	}
}

func TestCapture_HighConfidenceUnscheduledIsNoMatch(t *testing.T) {
	store := &fakeStore{scheduled: []models.Employee{{ID: 3}}}
	rec := &fakeRecognizer{result: models.MatchResult{Confidence: 95, UserID: uid(9)}}
	m := newTestMatcher(store, rec, ImageCamera{Image: testFrame()})
	require.NoError(t, m.Activate(context.Background()))

	a, err := m.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, a.Outcome)

	snap := m.Snapshot()
	assert.Equal(t, NoMatch, snap.State)
	assert.Equal(t, MsgNoMatch, snap.Message)

	_, err = m.ClockIn(context.Background())
	assert.ErrorIs(t, err, ErrNotMatched)
	assert.Empty(t, store.writes)
}

func TestCapture_LowConfidence(t *testing.T) {
	store := &fakeStore{scheduled: []models.Employee{{ID: 7}}}
	rec := &fakeRecognizer{result: models.MatchResult{Confidence: 80, UserID: uid(7)}}
	m := newTestMatcher(store, rec, ImageCamera{Image: testFrame()})
	require.NoError(t, m.Activate(context.Background()))

	a, err := m.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLowConfidence, a.Outcome)
	assert.Equal(t, LowConfidence, m.State())
	assert.Equal(t, MsgLowConfidence, m.Snapshot().Message)
}

func TestCapture_ServiceFailure(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("connection refused")}
	m := newTestMatcher(&fakeStore{}, rec, ImageCamera{Image: testFrame()})
	require.NoError(t, m.Activate(context.Background()))

	a, err := m.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCaptureFailed, a.Outcome)
	assert.Equal(t, CaptureFailed, m.State())
	assert.Equal(t, MsgCaptureFailed, m.Snapshot().Message)
}

func TestCapture_ZeroSizeStreamIsRejected(t *testing.T) {
	rec := &fakeRecognizer{}
	m := newTestMatcher(&fakeStore{}, rec, ImageCamera{})
	require.NoError(t, m.Activate(context.Background()))

	_, err := m.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCameraNotReady)
	assert.Equal(t, CameraOn, m.State())
	assert.Equal(t, MsgCameraNotReady, m.Snapshot().Message)
	assert.Zero(t, rec.Calls())
}

func TestCapture_RequiresCameraOn(t *testing.T) {
	m := newTestMatcher(&fakeStore{}, &fakeRecognizer{}, ImageCamera{Image: testFrame()})
	_, err := m.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCameraOff)
}

func TestActivate_CameraUnavailable(t *testing.T) {
	cam := &countingCamera{fail: errors.New("permission denied")}
	m := newTestMatcher(&fakeStore{}, &fakeRecognizer{}, cam)

	err := m.Activate(context.Background())
	require.Error(t, err)
	snap := m.Snapshot()
	assert.Equal(t, CameraOff, snap.State)
	assert.Equal(t, MsgCameraUnavailable, snap.Message)
	assert.False(t, snap.CameraHeld)
}

func TestRetry_IsIdempotent(t *testing.T) {
	cam := &countingCamera{img: testFrame()}
	rec := &fakeRecognizer{result: models.MatchResult{Confidence: 50}}
	m := newTestMatcher(&fakeStore{}, rec, cam)
	ctx := context.Background()
	require.NoError(t, m.Activate(ctx))

	_, err := m.Capture(ctx)
	require.NoError(t, err)
	require.Equal(t, LowConfidence, m.State())

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Retry(ctx))
		snap := m.Snapshot()
		assert.Equal(t, CameraOn, snap.State)
		assert.Nil(t, snap.Attempt)
		assert.Empty(t, snap.Message)
		assert.Empty(t, snap.Alert)
		assert.True(t, snap.CameraHeld)
		assert.Equal(t, 1, cam.Live())
	}
	assert.Equal(t, 4, cam.opened)
	assert.Equal(t, 1, cam.max)
}

func TestScenarioB_ClockInThenOut(t *testing.T) {
	store := &fakeStore{
		scheduled: []models.Employee{{ID: 3}, {ID: 7, Name: "Lan"}},
		shifts:    todayShifts(),
	}
	rec := &fakeRecognizer{result: models.MatchResult{Confidence: 92, UserID: uid(7)}}
	m := newTestMatcher(store, rec, ImageCamera{Image: testFrame()})
	ctx := context.Background()
	require.NoError(t, m.Activate(ctx))

	a, err := m.Capture(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeMatched, a.Outcome)
	require.NotNil(t, a.Employee)
	assert.Equal(t, "Lan", a.Employee.Name)
	assert.NotEmpty(t, a.Frame)
	assert.Equal(t, AwaitingAction, m.State())

	in, err := m.ClockIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(3), in.ShiftID)
	assert.Equal(t, InRecorded, m.State())

	out, err := m.ClockOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(3), out.ShiftID)
	assert.Equal(t, OutRecorded, m.State())

	require.Len(t, store.writes, 2)
	assert.Equal(t, write{3, models.TimeIn, clockAt}, store.writes[0])
	assert.Equal(t, write{3, models.TimeOut, clockAt}, store.writes[1])
	require.NotNil(t, store.shifts[2].TimeIn)
	assert.True(t, store.shifts[2].TimeIn.Equal(clockAt))
	assert.Nil(t, store.shifts[3].TimeIn)

	m.Finish()
	assert.Equal(t, CameraOff, m.State())
	assert.False(t, m.Snapshot().CameraHeld)
}

func TestClock_FailureRaisesAlert(t *testing.T) {
	store := &fakeStore{
		scheduled: []models.Employee{{ID: 7}},
		shifts:    todayShifts(),
		failWrite: errors.New("500"),
	}
	rec := &fakeRecognizer{result: models.MatchResult{Confidence: 99, UserID: uid(7)}}
	m := newTestMatcher(store, rec, ImageCamera{Image: testFrame()})
	ctx := context.Background()
	require.NoError(t, m.Activate(ctx))
	_, err := m.Capture(ctx)
	require.NoError(t, err)

	_, err = m.ClockIn(ctx)
	assert.ErrorIs(t, err, ErrClockFailed)
	snap := m.Snapshot()
	assert.Equal(t, MsgClockFailed, snap.Alert)
	assert.Equal(t, AwaitingAction, snap.State)

	m.DismissAlert()
	assert.Empty(t, m.Snapshot().Alert)
}

func TestClock_NoShiftToday(t *testing.T) {
	store := &fakeStore{
		scheduled: []models.Employee{{ID: 7}},
		shifts:    todayShifts()[:1],
	}
	rec := &fakeRecognizer{result: models.MatchResult{Confidence: 99, UserID: uid(7)}}
	m := newTestMatcher(store, rec, ImageCamera{Image: testFrame()})
	ctx := context.Background()
	require.NoError(t, m.Activate(ctx))
	_, err := m.Capture(ctx)
	require.NoError(t, err)

	_, err = m.ClockOut(ctx)
	assert.ErrorIs(t, err, ErrClockFailed)
	assert.ErrorContains(t, err, ErrNoShift.Error())
}

func TestLifecycle_SingleStream(t *testing.T) {
	cam := &countingCamera{img: testFrame()}
	m := newTestMatcher(&fakeStore{}, &fakeRecognizer{}, cam)
	ctx := context.Background()

	require.NoError(t, m.Activate(ctx))
	require.NoError(t, m.Activate(ctx))
	assert.Equal(t, 1, cam.Live())

	require.NoError(t, m.VisibilityChanged(ctx, false))
	assert.Equal(t, 0, cam.Live())
	assert.Equal(t, CameraOff, m.State())

	require.NoError(t, m.VisibilityChanged(ctx, true))
	assert.Equal(t, 1, cam.Live())
	assert.Equal(t, CameraOn, m.State())

	require.NoError(t, m.VisibilityChanged(ctx, true))
	assert.Equal(t, 1, cam.Live())

	m.Deactivate()
	assert.Equal(t, 0, cam.Live())
	assert.Equal(t, CameraOff, m.State())

	require.NoError(t, m.VisibilityChanged(ctx, false))
	require.NoError(t, m.VisibilityChanged(ctx, true))
	assert.Equal(t, 0, cam.Live())
	assert.Equal(t, 1, cam.max)
}

func TestCapture_ResetDiscardsLateResult(t *testing.T) {
	rec := &fakeRecognizer{
		result: models.MatchResult{Confidence: 99, UserID: uid(7)},
		gate:   make(chan struct{}),
		enter:  make(chan struct{}, 1),
	}
	store := &fakeStore{scheduled: []models.Employee{{ID: 7}}}
	m := newTestMatcher(store, rec, ImageCamera{Image: testFrame()})
	ctx := context.Background()
	require.NoError(t, m.Activate(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := m.Capture(ctx)
		done <- err
	}()

	<-rec.enter
	assert.Equal(t, Recognizing, m.State())
	require.NoError(t, m.Retry(ctx))
	close(rec.gate)

	assert.ErrorIs(t, <-done, ErrStale)
	snap := m.Snapshot()
	assert.Equal(t, CameraOn, snap.State)
	assert.Nil(t, snap.Attempt)
}

func TestFileCamera(t *testing.T) {
	_, err := FileCamera{Path: "testdata/missing.jpg"}.Open(context.Background())
	assert.Error(t, err)
}

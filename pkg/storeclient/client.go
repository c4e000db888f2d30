package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is wrapped by StatusError for 404 responses
var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx response
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to the schedule store REST API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client. A zero timeout leaves requests unbounded.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func dayQuery(day models.Date) string {
	return url.Values{"date": {day.String()}}.Encode()
}

// ShiftsForWeek fetches every shift of the week containing day
func (c *Client) ShiftsForWeek(ctx context.Context, day models.Date) ([]models.Shift, error) {
	var shifts []models.Shift
	if err := c.do(ctx, http.MethodGet, "/api/shifts/week?"+dayQuery(day), nil, &shifts); err != nil {
		return nil, err
	}
	return shifts, nil
}

// CreateShift assigns an employee to a cell
func (c *Client) CreateShift(ctx context.Context, in models.NewShift) (models.Shift, error) {
	var shift models.Shift
	err := c.do(ctx, http.MethodPost, "/api/shifts", in, &shift)
	return shift, err
}

// DeleteShift removes a shift
func (c *Client) DeleteShift(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, "/api/shifts/"+strconv.FormatUint(uint64(id), 10), nil, nil)
}

// UpdateShiftTime writes a single attendance timestamp
func (c *Client) UpdateShiftTime(ctx context.Context, id uint, field models.TimeField, at time.Time) error {
	stamp := models.FormatTimestamp(at)
	var body models.TimeUpdate
	switch field {
	case models.TimeIn:
		body.TimeIn = &stamp
	case models.TimeOut:
		body.TimeOut = &stamp
	default:
		return fmt.Errorf("unknown time field %q", field)
	}
	return c.do(ctx, http.MethodPatch, "/api/shifts/"+strconv.FormatUint(uint64(id), 10)+"/time", body, nil)
}

// Employees fetches the full roster
func (c *Client) Employees(ctx context.Context) ([]models.Employee, error) {
	var employees []models.Employee
	if err := c.do(ctx, http.MethodGet, "/api/employees", nil, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// Employee fetches one employee
func (c *Client) Employee(ctx context.Context, id uint) (models.Employee, error) {
	var e models.Employee
	err := c.do(ctx, http.MethodGet, "/api/employees/"+strconv.FormatUint(uint64(id), 10), nil, &e)
	return e, err
}

// ScheduledEmployees fetches the employees holding a shift on day
func (c *Client) ScheduledEmployees(ctx context.Context, day models.Date) ([]models.Employee, error) {
	var employees []models.Employee
	if err := c.do(ctx, http.MethodGet, "/api/employees/scheduled?"+dayQuery(day), nil, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// CreateEmployee adds an employee to the roster
func (c *Client) CreateEmployee(ctx context.Context, e models.Employee) (models.Employee, error) {
	var created models.Employee
	err := c.do(ctx, http.MethodPost, "/api/employees", e, &created)
	return created, err
}

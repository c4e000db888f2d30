package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/attendance"
	"github.com/arnavshah/shiftboard-go/pkg/config"
	"github.com/arnavshah/shiftboard-go/pkg/facematch"
	"github.com/arnavshah/shiftboard-go/pkg/grid"
	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/arnavshah/shiftboard-go/pkg/shifttype"
	"github.com/arnavshah/shiftboard-go/pkg/storeclient"
)

const usage = `Usage: shiftctl <command> [args]

  week [date]                          print the weekly grid
  assign <date> <type> <employee-id>   assign an employee to a shift
  remove <shift-id> [date]             remove an assignment
  suggest [date] [--apply]             propose assignments for open seats
  clock <in|out> <image-file>          record attendance from a photo`

type app struct {
	cfg    config.Config
	loc    *time.Location
	log    *slog.Logger
	store  *storeclient.Client
	stdin  *bufio.Reader
	stdout *os.File
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	a := &app{
		cfg:    cfg,
		loc:    loc,
		log:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		store:  storeclient.New(cfg.StoreURL, cfg.StoreTimeout),
		stdin:  bufio.NewReader(os.Stdin),
		stdout: os.Stdout,
	}

	ctx := context.Background()
	args := os.Args[2:]
	switch os.Args[1] {
	case "week":
		err = a.week(ctx, args)
	case "assign":
		err = a.assign(ctx, args)
	case "remove":
		err = a.remove(ctx, args)
	case "suggest":
		err = a.suggest(ctx, args)
	case "clock":
		err = a.clock(ctx, args)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

// day parses an optional date argument, defaulting to today
func (a *app) day(args []string, i int) (time.Time, error) {
	if len(args) <= i {
		return time.Now().In(a.loc), nil
	}
	d, err := models.ParseDate(args[i], a.loc)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

func (a *app) confirm(ctx context.Context, prompt string) bool {
	fmt.Fprintf(a.stdout, "%s [y/N] ", prompt)
	line, err := a.stdin.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes" || answer == "c" || answer == "có"
}

func (a *app) coordinator() *grid.Coordinator {
	return grid.New(a.store, grid.ConfirmFunc(a.confirm),
		grid.WithLogger(a.log),
		grid.WithLocation(a.loc),
		grid.WithHourCaps(a.cfg.HourCaps),
	)
}

func (a *app) load(ctx context.Context, c *grid.Coordinator, anchor time.Time) error {
	if err := c.LoadWeek(ctx, anchor); err != nil {
		return fmt.Errorf("load week: %w", err)
	}
	return nil
}

func (a *app) week(ctx context.Context, args []string) error {
	anchor, err := a.day(args, 0)
	if err != nil {
		return err
	}
	c := a.coordinator()
	if err := a.load(ctx, c, anchor); err != nil {
		return err
	}
	a.printGrid(c.Snapshot())
	return nil
}

func (a *app) printGrid(snap grid.Snapshot) {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	days := snap.View.Window.Days()

	header := []string{"Ca"}
	for _, d := range days {
		header = append(header, d.Format("Mon 02/01"))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, info := range shifttype.All() {
		row := []string{info.Label}
		for d := range days {
			var names []string
			for _, s := range snap.View.Cell(d, info.ID) {
				names = append(names, fmt.Sprintf("%s (#%d)", snap.Label(s.EmployeeID), s.ID))
			}
			if len(names) == 0 {
				names = []string{"-"}
			}
			row = append(row, strings.Join(names, ", "))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()

	for _, s := range snap.View.Unplaced {
		fmt.Fprintf(a.stdout, "unplaced: #%d %s %s %s\n", s.ID, s.Date.Key(), s.ShiftType, snap.Label(s.EmployeeID))
	}
}

func (a *app) assign(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("assign needs <date> <type> <employee-id>")
	}
	date, err := models.ParseDate(args[0], a.loc)
	if err != nil {
		return err
	}
	st := models.ShiftType(strings.ToUpper(args[1]))
	id, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid employee id %q", args[2])
	}

	c := a.coordinator()
	if err := a.load(ctx, c, date.Time); err != nil {
		return err
	}
	if err := c.OpenAssignment(ctx, date.Time, st); err != nil {
		return err
	}

	var chosen *models.Employee
	for _, e := range c.Candidates() {
		if e.ID == uint(id) {
			e := e
			chosen = &e
			break
		}
	}
	if chosen == nil {
		c.CancelAssignment()
		return fmt.Errorf("%w: employee %d cannot take %s", grid.ErrIneligible, id, st)
	}
	if err := c.SelectCandidate(*chosen); err != nil {
		return err
	}
	if err := c.ConfirmAssignment(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Assigned %s to %s on %s\n", chosen.Name, st, date.Key())
	a.printGrid(c.Snapshot())
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("remove needs <shift-id>")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid shift id %q", args[0])
	}
	anchor, err := a.day(args, 1)
	if err != nil {
		return err
	}

	c := a.coordinator()
	if err := a.load(ctx, c, anchor); err != nil {
		return err
	}
	var target *models.Shift
	for _, s := range c.Snapshot().View.Shifts() {
		if s.ID == uint(id) {
			s := s
			target = &s
			break
		}
	}
	if target == nil {
		return fmt.Errorf("shift %d is not in the week of %s", id, anchor.Format(models.DayLayout))
	}
	if err := c.RemoveAssignment(ctx, *target); err != nil {
		return err
	}
	if _, _, kept := c.Snapshot().View.Find(target.ID); kept {
		fmt.Fprintln(a.stdout, "Cancelled")
		return nil
	}
	fmt.Fprintf(a.stdout, "Removed shift #%d\n", target.ID)
	return nil
}

func (a *app) suggest(ctx context.Context, args []string) error {
	apply := false
	var rest []string
	for _, arg := range args {
		if arg == "--apply" {
			apply = true
			continue
		}
		rest = append(rest, arg)
	}
	anchor, err := a.day(rest, 0)
	if err != nil {
		return err
	}

	c := a.coordinator()
	if err := a.load(ctx, c, anchor); err != nil {
		return err
	}
	res, err := c.Suggest(ctx, a.cfg.Demand)
	if err != nil {
		return err
	}

	snap := c.Snapshot()
	for _, p := range res.Proposals {
		fmt.Fprintf(a.stdout, "%s  %-6s  %s\n", p.Date.Key(), p.ShiftType, snap.Label(p.EmployeeID))
	}
	for _, cf := range res.Conflicts {
		fmt.Fprintf(a.stdout, "unfilled %s %s: %s\n", cf.Date, cf.ShiftType, strings.Join(cf.Reasons, "; "))
	}
	fmt.Fprintf(a.stdout, "%d proposals, fairness %.1f\n", len(res.Proposals), res.FairnessScore)

	if !apply || len(res.Proposals) == 0 {
		return nil
	}
	if err := c.ApplySuggestions(ctx, res); err != nil {
		return err
	}
	a.printGrid(c.Snapshot())
	return nil
}

func (a *app) clock(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("clock needs <in|out> <image-file>")
	}
	field := strings.ToLower(args[0])
	if field != "in" && field != "out" {
		return fmt.Errorf("clock direction must be in or out, got %q", args[0])
	}
	if a.cfg.FaceMatchURL == "" {
		return fmt.Errorf("FACE_MATCH_URL is not set")
	}

	rec := facematch.New(a.cfg.FaceMatchURL, a.cfg.FaceMatchTimeout)
	if a.cfg.FaceMatchField != "" {
		rec.Field = a.cfg.FaceMatchField
	}

	m := attendance.NewMatcher(a.store, rec, attendance.FileCamera{Path: args[1]},
		attendance.WithLogger(a.log),
		attendance.WithLocation(a.loc),
		attendance.WithEncodeOptions(facematch.EncodeOptions{
			MaxSide: a.cfg.CaptureMaxSide,
			Quality: a.cfg.CaptureJPEGQuality,
		}),
	)
	defer m.Finish()

	if err := m.Activate(ctx); err != nil {
		return fmt.Errorf("%s: %w", attendance.MsgCameraUnavailable, err)
	}
	attempt, err := m.Capture(ctx)
	if err != nil {
		if msg := m.Snapshot().Message; msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}
	if attempt.Outcome != attendance.OutcomeMatched {
		return fmt.Errorf("%s (confidence %.1f)", m.Snapshot().Message, attempt.Confidence)
	}

	var record attendance.Record
	if field == "in" {
		record, err = m.ClockIn(ctx)
	} else {
		record, err = m.ClockOut(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %s recorded at %s (shift #%d, confidence %.1f)\n",
		attempt.Employee.Name, record.Field, record.At.In(a.loc).Format("15:04:05"),
		record.ShiftID, attempt.Confidence)
	return nil
}

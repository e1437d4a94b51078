package service

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bookingdesk/internal/availability"
	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/models"
	"bookingdesk/internal/schedule"
	"bookingdesk/internal/slots"
	"bookingdesk/internal/timeutil"
	"bookingdesk/internal/tracing"
)

// ResourceInfo is the read-only data a resource needs for slot computation.
type ResourceInfo struct {
	Resource models.Resource  `json:"resource"`
	Service  models.Service   `json:"service"`
	Blocks   []schedule.Block `json:"schedule_blocks"`
}

// DurationOption is a booking length that fits from a slot onward.
type DurationOption struct {
	Minutes int    `json:"minutes"`
	Label   string `json:"label"`
}

// SlotView is a slot as shown in the day view.
type SlotView struct {
	slots.SlotInfo
	Past      bool             `json:"past"`
	Durations []DurationOption `json:"durations,omitempty"`
}

// FreeRun is a stretch of back-to-back bookable slots.
type FreeRun struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Minutes int    `json:"minutes"`
}

// GroupView is the slots of one schedule block.
type GroupView struct {
	BlockStart string     `json:"block_start"`
	BlockEnd   string     `json:"block_end"`
	Slots      []SlotView `json:"slots"`
	FreeRuns   []FreeRun  `json:"free_runs"`
}

// DayView is the availability of one resource on one local date.
type DayView struct {
	Resource        models.Resource      `json:"resource"`
	Service         models.Service       `json:"service"`
	Date            timeutil.Date        `json:"date"`
	Step            int                  `json:"step_minutes"`
	DurationMinutes int                  `json:"duration_minutes"`
	Capacity        int                  `json:"capacity"`
	Groups          []GroupView          `json:"groups"`
	Slots           []slots.Slot         `json:"-"`
	Bookings        []models.Booking     `json:"bookings"`
	Summary         availability.Summary `json:"summary"`
}

// GridView is the fixed display window used by resource cards.
type GridView struct {
	Resource models.Resource      `json:"resource"`
	Date     timeutil.Date        `json:"date"`
	Slots    []slots.SlotInfo     `json:"slots"`
	Summary  availability.Summary `json:"summary"`
}

// SlotOptions configures the SlotService.
type SlotOptions struct {
	Location  *time.Location
	GridFrom  timeutil.TimeOfDay
	GridTo    timeutil.TimeOfDay
	GridStep  int
	ValidDays int
	Now       func() time.Time
}

// SlotService computes availability for resources.
type SlotService struct {
	api    BookingAPI
	opts   SlotOptions
	logger zerolog.Logger

	mu     sync.RWMutex
	cache  map[string]*ResourceInfo
	closed []timeutil.Date
}

// NewSlotService creates the service.
func NewSlotService(api BookingAPI, opts SlotOptions, logger *zerolog.Logger) *SlotService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.GridStep <= 0 {
		opts.GridStep = 30
	}
	if opts.GridTo <= opts.GridFrom {
		opts.GridFrom = timeutil.NewTimeOfDay(8, 0)
		opts.GridTo = timeutil.NewTimeOfDay(23, 0)
	}
	if opts.ValidDays <= 0 {
		opts.ValidDays = 365
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SlotService{
		api:    api,
		opts:   opts,
		logger: logger.With().Str("component", "slots").Logger(),
		cache:  make(map[string]*ResourceInfo),
	}
}

// Location is the zone dates are computed in.
func (s *SlotService) Location() *time.Location { return s.opts.Location }

// Today is the current local date.
func (s *SlotService) Today() timeutil.Date {
	return timeutil.TodayIn(s.opts.Now(), s.opts.Location)
}

// SetClosedDates replaces the site-wide closed dates.
func (s *SlotService) SetClosedDates(dates []timeutil.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append([]timeutil.Date(nil), dates...)
}

func (s *SlotService) closedDates() []timeutil.Date {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Invalidate drops the cached info of a resource, locally and in the API cache.
func (s *SlotService) Invalidate(ctx context.Context, resourceID string) {
	s.mu.Lock()
	info, ok := s.cache[resourceID]
	delete(s.cache, resourceID)
	s.mu.Unlock()

	name := ""
	if ok {
		name = info.Resource.Name
	}
	s.api.InvalidateResource(ctx, name, resourceID)
}

// Resources lists the bookable resources.
func (s *SlotService) Resources(ctx context.Context) ([]models.Resource, error) {
	return s.api.ListResources(ctx)
}

// ResourceNames maps resource ids to names for display.
func (s *SlotService) ResourceNames(ctx context.Context) (map[string]string, error) {
	resources, err := s.api.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(resources))
	for _, r := range resources {
		names[r.ID] = r.Name
	}
	return names, nil
}

// Resource returns the cached read-only info for a resource, loading it on
// first use.
func (s *SlotService) Resource(ctx context.Context, resourceID string) (*ResourceInfo, error) {
	s.mu.RLock()
	info, ok := s.cache[resourceID]
	s.mu.RUnlock()
	if ok {
		return info, nil
	}

	res, err := s.api.GetResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("load resource %s: %w", resourceID, err)
	}

	var (
		blocks []schedule.Block
		svc    *models.Service
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		blocks, err = s.api.GetScheduleBlocks(gctx, res.Name, "")
		if err != nil {
			return fmt.Errorf("load schedule: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		serviceID, err := s.api.GetServiceIDForResource(gctx, res.ID)
		if err != nil {
			return fmt.Errorf("resolve service: %w", err)
		}
		svc, err = s.api.GetService(gctx, serviceID)
		if err != nil {
			return fmt.Errorf("load service: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, o := range schedule.Overlaps(blocks) {
		s.logger.Warn().
			Str("resource_id", res.ID).
			Str("first", o.First.String()).
			Str("second", o.Second.String()).
			Msg("overlapping schedule blocks")
	}

	info = &ResourceInfo{Resource: *res, Service: *svc, Blocks: blocks}
	s.mu.Lock()
	s.cache[resourceID] = info
	s.mu.Unlock()
	return info, nil
}

// load fetches resource info and the resource's bookings concurrently.
func (s *SlotService) load(ctx context.Context, resourceID string) (*ResourceInfo, []models.Booking, error) {
	var (
		info     *ResourceInfo
		bookings []models.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = s.Resource(gctx, resourceID)
		return err
	})
	g.Go(func() error {
		var err error
		bookings, err = s.api.ListBookings(gctx, bookingapi.BookingFilter{ResourceID: resourceID})
		if err != nil {
			return fmt.Errorf("load bookings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return info, bookings, nil
}

// DayView builds the slot groups of a resource for date.
func (s *SlotService) DayView(ctx context.Context, resourceID string, date timeutil.Date) (*DayView, error) {
	ctx, span := tracing.Start(ctx, "SlotService.DayView")
	defer span.End()

	info, bookings, err := s.load(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	loc := s.opts.Location
	step := info.Service.StepMinutes()
	capacity := info.Resource.EffectiveCapacity()
	intervals := availability.BookingIntervals(bookings, date, loc)
	now := s.opts.Now().In(loc)

	view := &DayView{
		Resource:        info.Resource,
		Service:         info.Service,
		Date:            date,
		Step:            step,
		DurationMinutes: info.Service.DurationMinutes(),
		Capacity:        capacity,
		Groups:          []GroupView{},
		Bookings:        dayBookings(bookings, date, loc),
	}

	if _, open := s.validDateSet(info.Blocks, date, date)[date]; !open {
		return view, nil
	}

	groups := slots.GenerateGroups(schedule.BlocksForDate(info.Blocks, date), step)
	for i, g := range groups {
		groups[i].Slots = availability.ClassifySlots(g.Slots, intervals, capacity)
		views, bookable := slotViews(groups[i].Slots, date, now)
		view.Groups = append(view.Groups, GroupView{
			BlockStart: g.BlockStart.String(),
			BlockEnd:   g.BlockEnd.String(),
			Slots:      views,
			FreeRuns:   freeRuns(bookable),
		})
	}
	view.Slots = slots.Flatten(groups)
	view.Summary = availability.Summarize(view.Slots)
	return view, nil
}

// Grid builds the fixed display window of a resource for date.
func (s *SlotService) Grid(ctx context.Context, resourceID string, date timeutil.Date) (*GridView, error) {
	ctx, span := tracing.Start(ctx, "SlotService.Grid")
	defer span.End()

	info, bookings, err := s.load(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	loc := s.opts.Location
	blocks := schedule.BlocksForDate(info.Blocks, date)
	if _, open := s.validDateSet(info.Blocks, date, date)[date]; !open {
		blocks = nil
	}
	grid := slots.GenerateGrid(blocks, s.opts.GridFrom, s.opts.GridTo, s.opts.GridStep)
	classified := availability.ClassifySlots(grid, availability.BookingIntervals(bookings, date, loc), info.Resource.EffectiveCapacity())

	return &GridView{
		Resource: info.Resource,
		Date:     date,
		Slots:    slots.ToSlotInfo(classified),
		Summary:  availability.Summarize(classified),
	}, nil
}

// ValidDates lists the bookable dates of a resource in [from, to], clamped to
// the booking horizon and excluding closed dates.
func (s *SlotService) ValidDates(ctx context.Context, resourceID string, from, to timeutil.Date) ([]timeutil.Date, error) {
	info, err := s.Resource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	var out []timeutil.Date
	for d := range s.validDates(info.Blocks, from, to) {
		out = append(out, d)
	}
	return out, nil
}

func (s *SlotService) validDates(blocks []schedule.Block, from, to timeutil.Date) iter.Seq[timeutil.Date] {
	today := s.Today()
	horizon := today.AddDays(s.opts.ValidDays)
	if from.Before(today) {
		from = today
	}
	if to.After(horizon) {
		to = horizon
	}
	return schedule.WithoutDates(schedule.ValidDatesInRange(blocks, from, to), s.closedDates())
}

func (s *SlotService) validDateSet(blocks []schedule.Block, from, to timeutil.Date) map[timeutil.Date]struct{} {
	return schedule.DateSet(s.validDates(blocks, from, to))
}

func dayBookings(bookings []models.Booking, date timeutil.Date, loc *time.Location) []models.Booking {
	out := []models.Booking{}
	for i := range bookings {
		if bookings[i].Active() && bookings[i].LocalDate(loc) == date {
			out = append(out, bookings[i])
		}
	}
	return out
}

// slotViews renders classified slots. Slots that already started are shown
// as not available; the returned bookable slice has them marked unavailable.
func slotViews(classified []slots.Slot, date timeutil.Date, now time.Time) ([]SlotView, []slots.Slot) {
	bookable := make([]slots.Slot, len(classified))
	copy(bookable, classified)

	infos := slots.ToSlotInfo(classified)
	out := make([]SlotView, len(infos))
	for i, info := range infos {
		past := timeutil.IsPastRelativeTo(date, classified[i].Start(), now)
		if past {
			info.Available = false
			bookable[i].Status = slots.StatusUnavailable
		}
		out[i] = SlotView{SlotInfo: info, Past: past}
	}
	for i := range out {
		for _, m := range slots.DurationOptions(bookable, bookable[i].StartMinute) {
			out[i].Durations = append(out[i].Durations, DurationOption{Minutes: m, Label: slots.FormatDuration(m)})
		}
	}
	return out, bookable
}

func freeRuns(bookable []slots.Slot) []FreeRun {
	runs := []FreeRun{}
	for _, run := range slots.ConsecutiveRuns(bookable) {
		first, last := run[0], run[len(run)-1]
		runs = append(runs, FreeRun{
			Start:   first.Start().String(),
			End:     last.End().String(),
			Minutes: last.EndMinute - first.StartMinute,
		})
	}
	return runs
}

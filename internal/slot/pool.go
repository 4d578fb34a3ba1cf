// Package slot owns the bookable time slots shared by medical clinics and the
// international office.
package slot

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/db"
)

const (
	defaultLookaheadDays = 7
	defaultPageSize      = 100
)

type Pool struct {
	repo     Repository
	tx       db.Transactor
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
	pageSize int
}

type Option func(*Pool)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithPageSize sets how many rows FindAvailable reads per query.
func WithPageSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

func NewPool(repo Repository, tx db.Transactor, loc *time.Location, log *zap.Logger, opts ...Option) *Pool {
	p := &Pool{
		repo:     repo,
		tx:       tx,
		loc:      loc,
		log:      log,
		now:      time.Now,
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location is the campus time zone slot dates and clocks are expressed in.
func (p *Pool) Location() *time.Location {
	return p.loc
}

// Generate creates one slot per date and per SlotDuration step that fits in
// the day window. Existing slots with the same key are left untouched and
// not counted.
func (p *Pool) Generate(ctx context.Context, req GenerateRequest) (int, error) {
	if err := validateRange(req); err != nil {
		return 0, err
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = 1
	}

	first := Midnight(req.FromDate, p.loc)
	last := Midnight(req.ToDate, p.loc)

	created := 0
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			for cur := req.DayStart; cur+req.SlotDuration <= req.DayEnd; cur += req.SlotDuration {
				s := &TimeSlot{
					LocationType:    req.LocationType,
					LocationName:    req.LocationName,
					RoomNumber:      req.RoomNumber,
					StaffID:         req.StaffID,
					StartsAt:        At(d, cur, p.loc),
					EndsAt:          At(d, cur+req.SlotDuration, p.loc),
					MaxCapacity:     capacity,
					Available:       true,
					AppointmentType: req.AppointmentType,
					Notes:           req.Notes,
				}
				ok, err := p.repo.Insert(ctx, s)
				if err != nil {
					return err
				}
				if ok {
					created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("generate slots: %w", err)
	}

	p.log.Info("slots generated",
		zap.String("location", req.LocationName),
		zap.String("from", first.Format(DateLayout)),
		zap.String("to", last.Format(DateLayout)),
		zap.Int("created", created),
	)
	return created, nil
}

// FindAvailable yields matching slots with spare capacity, ordered by start
// time. Rows are read a page at a time; each range over the sequence starts a
// fresh scan.
func (p *Pool) FindAvailable(ctx context.Context, f Filter) iter.Seq2[TimeSlot, error] {
	q := p.query(f)
	return func(yield func(TimeSlot, error) bool) {
		var after *Cursor
		for {
			page, err := p.repo.ListAvailable(ctx, q, after, p.pageSize)
			if err != nil {
				yield(TimeSlot{}, fmt.Errorf("find available slots: %w", err))
				return
			}
			for _, s := range page {
				if !yield(s, nil) {
					return
				}
			}
			if len(page) < p.pageSize {
				return
			}
			last := page[len(page)-1]
			after = &Cursor{StartsAt: last.StartsAt, LocationName: last.LocationName}
		}
	}
}

// CollectAvailable drains FindAvailable into a slice of at most limit slots.
// A limit of zero means no limit.
func (p *Pool) CollectAvailable(ctx context.Context, f Filter, limit int) ([]TimeSlot, error) {
	var out []TimeSlot
	for s, err := range p.FindAvailable(ctx, f) {
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (p *Pool) query(f Filter) Query {
	q := Query{LocationName: f.LocationName, LocationType: f.LocationType}
	if f.LocationName == "" && f.LocationType == "" {
		return q
	}

	date := f.Date
	if date.IsZero() {
		date = p.now()
	}
	from := Midnight(date, p.loc)
	to := from.AddDate(0, 0, 1)

	if f.LocationName == "" {
		days := f.LookaheadDays
		if days <= 0 {
			days = defaultLookaheadDays
		}
		to = from.AddDate(0, 0, days+1)
	}

	q.From = &from
	q.To = &to
	return q
}

// Book consumes one unit of the slot's capacity.
func (p *Pool) Book(ctx context.Context, key Key) (*TimeSlot, error) {
	s, err := p.repo.Increment(ctx, key)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Release returns one unit of capacity. Releasing a slot with no bookings
// leaves it at zero.
func (p *Pool) Release(ctx context.Context, key Key) (*TimeSlot, error) {
	s, err := p.repo.Decrement(ctx, key)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Pool) Lookup(ctx context.Context, key Key) (*TimeSlot, error) {
	return p.repo.Get(ctx, key)
}

package schedule

import "context"

// =============================================================================
// HOLIDAY CALENDAR - Pure lookup, no side effects
// =============================================================================

// HolidayCalendar answers whether a date is a holiday.
type HolidayCalendar interface {
	// Lookup returns the holiday on the given date, or nil.
	Lookup(d Date) *Holiday

	// Holidays returns all holidays in the given year.
	Holidays(year int) []Holiday
}

// DefaultCalendar is a no-op calendar for when holidays are disabled.
type DefaultCalendar struct{}

func (DefaultCalendar) Lookup(Date) *Holiday   { return nil }
func (DefaultCalendar) Holidays(int) []Holiday { return nil }

// StaticCalendar is an immutable in-memory calendar.
type StaticCalendar struct {
	byDate map[string]Holiday
}

func NewStaticCalendar(holidays []Holiday) *StaticCalendar {
	c := &StaticCalendar{byDate: make(map[string]Holiday, len(holidays))}
	for _, h := range holidays {
		c.byDate[h.Date.String()] = h
	}
	return c
}

// LoadCalendar builds a StaticCalendar from a HolidayStore.
func LoadCalendar(ctx context.Context, store HolidayStore) (*StaticCalendar, error) {
	holidays, err := store.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	return NewStaticCalendar(holidays), nil
}

func (c *StaticCalendar) Lookup(d Date) *Holiday {
	if h, ok := c.byDate[d.String()]; ok {
		return &h
	}
	return nil
}

func (c *StaticCalendar) Holidays(year int) []Holiday {
	var out []Holiday
	for _, h := range c.byDate {
		if h.Date.Time.Year() == year {
			out = append(out, h)
		}
	}
	return out
}

// =============================================================================
// INPATIENT EXEMPTION - Static allow-list of service names
// =============================================================================

// InpatientServices is the configuration-time set of service names exempt
// from holiday blocking. Inpatient care does not pause for holidays.
type InpatientServices map[string]struct{}

func NewInpatientServices(names ...string) InpatientServices {
	s := make(InpatientServices, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s InpatientServices) IsInpatient(serviceName string) bool {
	_, ok := s[serviceName]
	return ok
}

package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BusinessHours is the bookable window: a set of weekdays and a half-open
// clock interval [Open, Close) in Location.
type BusinessHours struct {
	Days     map[time.Weekday]bool
	Open     time.Duration // offset from midnight
	Close    time.Duration
	Location *time.Location
}

func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Days: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		Open:     9 * time.Hour,
		Close:    17 * time.Hour,
		Location: time.UTC,
	}
}

// IsBookable reports whether t falls on a business day inside [Open, Close).
func (h BusinessHours) IsBookable(t time.Time) bool {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if !h.Days[local.Weekday()] {
		return false
	}
	// wall clock, so DST transitions do not shift the window
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return offset >= h.Open && offset < h.Close
}

// ParseBusinessHours builds hours from config strings such as
// "mon,tue,wed,thu,fri", "09:00", "17:00", "Europe/Berlin".
func ParseBusinessHours(days, openAt, closeAt, tz string) (BusinessHours, error) {
	h := DefaultBusinessHours()

	if strings.TrimSpace(days) != "" {
		set, err := ParseWeekdays(days)
		if err != nil {
			return h, err
		}
		h.Days = set
	}

	var err error
	if openAt != "" {
		if h.Open, err = parseClock(openAt); err != nil {
			return h, fmt.Errorf("opening time: %w", err)
		}
	}
	if closeAt != "" {
		if h.Close, err = parseClock(closeAt); err != nil {
			return h, fmt.Errorf("closing time: %w", err)
		}
	}
	if h.Open >= h.Close {
		return h, fmt.Errorf("opening time %s must be before closing time %s", openAt, closeAt)
	}

	if tz != "" {
		if h.Location, err = time.LoadLocation(tz); err != nil {
			return h, fmt.Errorf("timezone: %w", err)
		}
	}
	return h, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays accepts names ("mon", "monday") or numbers (0=Sunday).
func ParseWeekdays(s string) (map[time.Weekday]bool, error) {
	set := map[time.Weekday]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if wd, ok := weekdayNames[part]; ok {
			set[wd] = true
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday: %s", part)
		}
		set[time.Weekday(n)] = true
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no business days in %q", s)
	}
	return set, nil
}

// parseClock reads "HH:MM"; "24:00" is allowed as a closing time.
func parseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || h < 0 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

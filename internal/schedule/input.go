package schedule

import (
	"strings"
	"time"

	"lexcal-scheduler/internal/apperr"
	"lexcal-scheduler/internal/model"
)

// CreateInput is an owner's direct booking. Status defaults to confirmed.
type CreateInput struct {
	LawyerID        string       `json:"lawyerId"`
	ClientID        string       `json:"clientId"`
	Start           string       `json:"start"`
	Date            string       `json:"date"` // older clients send the start as "date"
	Title           string       `json:"title"`
	Location        string       `json:"location"`
	DurationMinutes *int         `json:"durationMinutes"`
	Participants    []string     `json:"participants"`
	Status          model.Status `json:"status"`
}

// RequestInput is a client's booking request; it always enters as pending.
type RequestInput struct {
	LawyerID        string   `json:"lawyerId"`
	ClientID        string   `json:"clientId"`
	Start           string   `json:"start"`
	Date            string   `json:"date"`
	Title           string   `json:"title"`
	Location        string   `json:"location"`
	DurationMinutes *int     `json:"durationMinutes"`
	Participants    []string `json:"participants"`
	RequestMessage  string   `json:"requestMessage"`
}

type RespondInput struct {
	Status          model.Status `json:"status"`
	ResponseMessage string       `json:"responseMessage"`
}

// EditInput carries only the fields being changed.
type EditInput struct {
	Start           *string       `json:"start"`
	Date            *string       `json:"date"`
	Title           *string       `json:"title"`
	Location        *string       `json:"location"`
	DurationMinutes *int          `json:"durationMinutes"`
	Participants    *[]string     `json:"participants"`
	Status          *model.Status `json:"status"`
}

func (e EditInput) empty() bool {
	return e.Start == nil && e.Date == nil && e.Title == nil && e.Location == nil &&
		e.DurationMinutes == nil && e.Participants == nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime reads an RFC 3339 timestamp, or a zoneless one interpreted in loc.
// The result is in UTC at millisecond precision, which is what the stores keep.
func ParseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperr.New(apperr.ValidationError, "start is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC().Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, apperr.Newf(apperr.ValidationError, "start %q is not a valid timestamp", raw)
}

func pickStart(start, date string) string {
	if start != "" {
		return start
	}
	return date
}

// MaxDurationMinutes caps a single appointment at one day.
const MaxDurationMinutes = 24 * 60

func checkDuration(v int) error {
	if v <= 0 {
		return apperr.New(apperr.ValidationError, "durationMinutes must be positive")
	}
	if v > MaxDurationMinutes {
		return apperr.Newf(apperr.ValidationError, "durationMinutes must be at most %d", MaxDurationMinutes)
	}
	return nil
}

func duration(v *int, fallback int) (int, error) {
	if v == nil {
		return fallback, nil
	}
	if err := checkDuration(*v); err != nil {
		return 0, err
	}
	return *v, nil
}

func requireIDs(lawyerID, clientID string) error {
	if strings.TrimSpace(lawyerID) == "" {
		return apperr.New(apperr.ValidationError, "lawyerId is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return apperr.New(apperr.ValidationError, "clientId is required")
	}
	return nil
}

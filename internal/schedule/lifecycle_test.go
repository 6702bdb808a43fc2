package schedule

import (
	"errors"
	"testing"
	"time"

	"lexcal-scheduler/internal/apperr"
	"lexcal-scheduler/internal/model"
)

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 11, 3, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		s1, e1 time.Time
		s2, e2 time.Time
		want   bool
	}{
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"partial", at(10, 0), at(11, 0), at(10, 30), at(11, 30), true},
		{"contained", at(10, 0), at(12, 0), at(10, 30), at(11, 0), true},
		{"touching after", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"touching before", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"disjoint", at(9, 0), at(10, 0), at(14, 0), at(15, 0), false},
	}
	for _, tt := range tests {
		if got := Overlaps(tt.s1, tt.e1, tt.s2, tt.e2); got != tt.want {
			t.Errorf("%s: Overlaps = %v, want %v", tt.name, got, tt.want)
		}
		if got := Overlaps(tt.s2, tt.e2, tt.s1, tt.e1); got != tt.want {
			t.Errorf("%s: Overlaps is not symmetric", tt.name)
		}
	}
}

func TestRespond(t *testing.T) {
	now := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	pending := model.Appointment{ID: "a1", Status: model.StatusPending}

	got, err := respond(pending, model.StatusConfirmed, "see you", now)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got.Status != model.StatusConfirmed || got.ResponseMessage != "see you" {
		t.Errorf("got %+v", got)
	}
	if got.RespondedAt == nil || !got.RespondedAt.Equal(now) {
		t.Errorf("respondedAt = %v, want %v", got.RespondedAt, now)
	}

	if _, err := respond(got, model.StatusRejected, "", now); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("second response: got %v, want InvalidTransition", err)
	}
	if _, err := respond(pending, model.StatusCancelled, "", now); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("cancel via respond: got %v, want InvalidTransition", err)
	}
}

func TestStampCreated(t *testing.T) {
	now := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)

	a := &model.Appointment{Status: model.StatusPending}
	stampCreated(a, now)
	if !a.RequestedAt.Equal(now) || a.RespondedAt != nil {
		t.Errorf("pending: requestedAt=%v respondedAt=%v", a.RequestedAt, a.RespondedAt)
	}

	b := &model.Appointment{Status: model.StatusConfirmed}
	stampCreated(b, now)
	if b.RespondedAt == nil || !b.RespondedAt.Equal(now) {
		t.Errorf("confirmed: respondedAt = %v", b.RespondedAt)
	}
}

func TestParseEdit(t *testing.T) {
	st := model.StatusConfirmed
	if _, err := parseEdit(EditInput{Status: &st}, time.UTC); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("status edit: got %v", err)
	}
	if _, err := parseEdit(EditInput{}, time.UTC); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty edit: got %v", err)
	}
	zero := 0
	if _, err := parseEdit(EditInput{DurationMinutes: &zero}, time.UTC); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero duration: got %v", err)
	}
	over := MaxDurationMinutes + 1
	if _, err := parseEdit(EditInput{DurationMinutes: &over}, time.UTC); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("duration over a day: got %v", err)
	}
	day := MaxDurationMinutes
	if _, err := parseEdit(EditInput{DurationMinutes: &day}, time.UTC); err != nil {
		t.Errorf("day-long duration: %v", err)
	}

	date := "2025-11-04T13:00"
	e, err := parseEdit(EditInput{Date: &date}, time.UTC)
	if err != nil {
		t.Fatalf("parseEdit: %v", err)
	}
	a := model.Appointment{Start: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC), DurationMinutes: 60, Title: "t"}
	next, moved := applyEdit(a, e)
	if !moved || !next.Start.Equal(time.Date(2025, 11, 4, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("applyEdit: moved=%v start=%v", moved, next.Start)
	}
	if next.Title != "t" {
		t.Errorf("untouched field changed: %q", next.Title)
	}

	title := "renamed"
	e, _ = parseEdit(EditInput{Title: &title}, time.UTC)
	if next, moved = applyEdit(a, e); moved || next.Title != "renamed" {
		t.Errorf("title edit: moved=%v title=%q", moved, next.Title)
	}
}

func TestProjectSanitizes(t *testing.T) {
	a := &model.Appointment{
		ID:              "a1",
		LawyerID:        "L",
		ClientID:        "C",
		Start:           time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Title:           "Divorce consultation",
		Location:        "Room 4",
		Participants:    []string{"x@example.com"},
		Status:          model.StatusConfirmed,
		RequestMessage:  "private",
	}

	full, ok := Project(a, Viewer{ID: "C"})
	if !ok || full.Details == nil || full.Label != "Divorce consultation" || full.Occupied {
		t.Errorf("party view = %+v", full)
	}

	other, ok := Project(a, Viewer{ID: "D"})
	if !ok {
		t.Fatal("active record should be visible as occupied")
	}
	if other.Details != nil || other.Label != OccupiedLabel || !other.Occupied {
		t.Errorf("sanitized view = %+v", other)
	}
	if !other.End.Equal(a.Start.Add(time.Hour)) {
		t.Errorf("end = %v", other.End)
	}

	a.Status = model.StatusCancelled
	if _, ok := Project(a, Viewer{ID: "D"}); ok {
		t.Error("cancelled record of someone else should be hidden")
	}
	if _, ok := Project(a, Viewer{ID: "L"}); !ok {
		t.Error("owner should still see their cancelled record")
	}
}

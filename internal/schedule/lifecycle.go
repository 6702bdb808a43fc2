package schedule

import (
	"time"

	"lexcal-scheduler/internal/apperr"
	"lexcal-scheduler/internal/model"
)

// Transition table:
//
//	(none)    --owner creates-->   confirmed  requestedAt=respondedAt=now
//	(none)    --client requests--> pending    requestedAt=now
//	pending   --owner accepts-->   confirmed  respondedAt=now, responseMessage
//	pending   --owner rejects-->   rejected   respondedAt=now, responseMessage
//	any       --party cancels-->   cancelled
//	any       --party edits-->     unchanged  (status is not editable)

func requireOwner(a *model.Appointment, v Viewer) error {
	if v.ID == "" || v.ID != a.LawyerID {
		return apperr.New(apperr.Forbidden, "only the appointment's lawyer may do this")
	}
	return nil
}

func requireParty(a *model.Appointment, v Viewer) error {
	if v.ID == "" || (v.ID != a.LawyerID && v.ID != a.ClientID) {
		return apperr.New(apperr.Forbidden, "only the appointment's lawyer or client may do this")
	}
	return nil
}

// initialStatus validates the status an owner asked for on direct creation.
func initialStatus(s model.Status) (model.Status, error) {
	if s == "" {
		return model.StatusConfirmed, nil
	}
	if !s.Valid() {
		return "", apperr.Newf(apperr.ValidationError, "unknown status %q", s)
	}
	return s, nil
}

// stampCreated sets the creation timestamps. A record born outside pending
// counts as already answered.
func stampCreated(a *model.Appointment, now time.Time) {
	a.RequestedAt = now
	a.RespondedAt = nil
	if a.Status != model.StatusPending {
		t := now
		a.RespondedAt = &t
	}
}

func checkDecision(s model.Status) error {
	if s != model.StatusConfirmed && s != model.StatusRejected {
		return apperr.Newf(apperr.InvalidTransition, "response must be %q or %q, got %q",
			model.StatusConfirmed, model.StatusRejected, s)
	}
	return nil
}

// respond moves a pending appointment to the owner's decision. respondedAt
// is written exactly once because only pending records get here.
func respond(a model.Appointment, decision model.Status, msg string, now time.Time) (model.Appointment, error) {
	if err := checkDecision(decision); err != nil {
		return a, err
	}
	if a.Status != model.StatusPending {
		return a, apperr.Newf(apperr.InvalidTransition, "appointment is %s, not pending", a.Status)
	}
	a.Status = decision
	a.ResponseMessage = msg
	t := now
	a.RespondedAt = &t
	return a, nil
}

func cancel(a model.Appointment) model.Appointment {
	a.Status = model.StatusCancelled
	return a
}

// edit holds a parsed EditInput.
type edit struct {
	start           *time.Time
	durationMinutes *int
	title           *string
	location        *string
	participants    *[]string
}

// applyEdit copies the supplied fields onto a. rescheduled reports whether
// the interval changed and the slot guards must run again.
func applyEdit(a model.Appointment, e edit) (next model.Appointment, rescheduled bool) {
	next = a.Clone()
	if e.start != nil && !e.start.Equal(a.Start) {
		next.Start = *e.start
		rescheduled = true
	}
	if e.durationMinutes != nil && *e.durationMinutes != a.DurationMinutes {
		next.DurationMinutes = *e.durationMinutes
		rescheduled = true
	}
	if e.title != nil {
		next.Title = *e.title
	}
	if e.location != nil {
		next.Location = *e.location
	}
	if e.participants != nil {
		next.Participants = append([]string{}, (*e.participants)...)
	}
	return next, rescheduled
}

func parseEdit(in EditInput, loc *time.Location) (edit, error) {
	if in.Status != nil {
		return edit{}, apperr.New(apperr.InvalidTransition,
			"status cannot be edited; use respond or cancel")
	}
	if in.empty() {
		return edit{}, apperr.New(apperr.ValidationError, "no editable fields supplied")
	}
	var e edit
	raw := in.Start
	if raw == nil {
		raw = in.Date
	}
	if raw != nil {
		t, err := ParseTime(*raw, loc)
		if err != nil {
			return edit{}, err
		}
		e.start = &t
	}
	if in.DurationMinutes != nil {
		if err := checkDuration(*in.DurationMinutes); err != nil {
			return edit{}, err
		}
		d := *in.DurationMinutes
		e.durationMinutes = &d
	}
	e.title = in.Title
	e.location = in.Location
	e.participants = in.Participants
	return e, nil
}

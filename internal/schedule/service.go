package schedule

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"lexcal-scheduler/internal/apperr"
	"lexcal-scheduler/internal/events"
	"lexcal-scheduler/internal/metrics"
	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/store"
)

const DefaultDurationMinutes = 60

type Config struct {
	Hours           BusinessHours
	DefaultDuration int
	Events          events.Publisher
	Logger          *log.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

// Service is the scheduling façade. It keeps no state between calls: every
// operation re-reads what it needs from the store.
type Service struct {
	store           store.Store
	hours           BusinessHours
	defaultDuration int
	events          events.Publisher
	log             *log.Logger
	now             func() time.Time
}

func New(st store.Store, cfg Config) *Service {
	s := &Service{
		store:           st,
		hours:           cfg.Hours,
		defaultDuration: cfg.DefaultDuration,
		events:          cfg.Events,
		log:             cfg.Logger,
		now:             cfg.Now,
	}
	if s.hours.Days == nil {
		s.hours = DefaultBusinessHours()
	}
	if s.hours.Location == nil {
		s.hours.Location = time.UTC
	}
	if s.defaultDuration <= 0 || s.defaultDuration > MaxDurationMinutes {
		s.defaultDuration = DefaultDurationMinutes
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.log == nil {
		s.log = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Hours() BusinessHours { return s.hours }

// stores keep millisecond precision
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create books a slot directly on the lawyer's calendar.
func (s *Service) Create(ctx context.Context, v Viewer, in CreateInput) (*model.Appointment, error) {
	a, err := s.create(ctx, v, in)
	return a, s.done("create", a, err)
}

func (s *Service) create(ctx context.Context, v Viewer, in CreateInput) (*model.Appointment, error) {
	if err := requireIDs(in.LawyerID, in.ClientID); err != nil {
		return nil, err
	}
	if v.ID != in.LawyerID {
		return nil, apperr.New(apperr.Forbidden, "only the lawyer may book directly; send a request instead")
	}
	if in.LawyerID == in.ClientID {
		return nil, apperr.New(apperr.ValidationError, "lawyerId and clientId must differ")
	}
	start, err := ParseTime(pickStart(in.Start, in.Date), s.hours.Location)
	if err != nil {
		return nil, err
	}
	dur, err := duration(in.DurationMinutes, s.defaultDuration)
	if err != nil {
		return nil, err
	}
	status, err := initialStatus(in.Status)
	if err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:              uuid.New().String(),
		LawyerID:        in.LawyerID,
		ClientID:        in.ClientID,
		Start:           start,
		DurationMinutes: dur,
		Title:           in.Title,
		Location:        in.Location,
		Participants:    nonNil(in.Participants),
		Status:          status,
	}
	stampCreated(a, s.clock())

	if err := s.book(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeCreated, a, v.ID)
	return a, nil
}

// Request files a pending booking request from a client.
func (s *Service) Request(ctx context.Context, v Viewer, in RequestInput) (*model.Appointment, error) {
	a, err := s.request(ctx, v, in)
	return a, s.done("request", a, err)
}

func (s *Service) request(ctx context.Context, v Viewer, in RequestInput) (*model.Appointment, error) {
	if err := requireIDs(in.LawyerID, in.ClientID); err != nil {
		return nil, err
	}
	if v.ID != in.ClientID {
		return nil, apperr.New(apperr.Forbidden, "requests must be made by the client they are for")
	}
	if in.LawyerID == in.ClientID {
		return nil, apperr.New(apperr.ValidationError, "lawyerId and clientId must differ")
	}
	start, err := ParseTime(pickStart(in.Start, in.Date), s.hours.Location)
	if err != nil {
		return nil, err
	}
	dur, err := duration(in.DurationMinutes, s.defaultDuration)
	if err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:              uuid.New().String(),
		LawyerID:        in.LawyerID,
		ClientID:        in.ClientID,
		Start:           start,
		DurationMinutes: dur,
		Title:           in.Title,
		Location:        in.Location,
		Participants:    nonNil(in.Participants),
		Status:          model.StatusPending,
		RequestMessage:  in.RequestMessage,
	}
	stampCreated(a, s.clock())

	if err := s.book(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeRequested, a, v.ID)
	return a, nil
}

// book runs the slot guards and the insert under the lawyer's lock, so two
// concurrent bookings cannot both pass the conflict check.
func (s *Service) book(ctx context.Context, a *model.Appointment) error {
	if !s.hours.IsBookable(a.Start) {
		return apperr.Newf(apperr.OutOfHours, "%s is outside business hours",
			a.Start.In(s.hours.Location).Format("Mon 2006-01-02 15:04"))
	}
	err := s.store.WithLawyerLock(ctx, a.LawyerID, func(tx store.Tx) error {
		if a.Status.Active() {
			if err := s.checkConflict(ctx, tx, a); err != nil {
				return err
			}
		}
		return tx.InsertAppointment(ctx, a)
	})
	return storeErr(err, "save appointment")
}

func (s *Service) checkConflict(ctx context.Context, tx store.Tx, a *model.Appointment) error {
	clash, err := HasConflict(ctx, tx, a.LawyerID, a.Start, a.End(), a.ID)
	if err != nil {
		return storeErr(err, "check conflicts")
	}
	if clash {
		return apperr.Newf(apperr.SlotConflict, "%s overlaps another appointment of this lawyer",
			a.Start.In(s.hours.Location).Format("2006-01-02 15:04"))
	}
	return nil
}

// Respond accepts or rejects a pending request.
func (s *Service) Respond(ctx context.Context, v Viewer, id string, in RespondInput) (*model.Appointment, error) {
	a, err := s.respond(ctx, v, id, in)
	return a, s.done("respond", a, err)
}

func (s *Service) respond(ctx context.Context, v Viewer, id string, in RespondInput) (*model.Appointment, error) {
	if err := checkDecision(in.Status); err != nil {
		return nil, err
	}
	var out model.Appointment
	err := s.mutate(ctx, v, id, requireOwner, func(tx store.Tx, cur *model.Appointment) error {
		next, err := respond(*cur, in.Status, in.ResponseMessage, s.clock())
		if err != nil {
			return err
		}
		if err := tx.UpdateAppointment(ctx, &next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	t := events.TypeConfirmed
	if out.Status == model.StatusRejected {
		t = events.TypeRejected
	}
	s.publish(ctx, t, &out, v.ID)
	return &out, nil
}

// Update edits incidental fields. Changing start or duration re-runs the
// business-hours and conflict guards; status is never editable here.
func (s *Service) Update(ctx context.Context, v Viewer, id string, in EditInput) (*model.Appointment, error) {
	a, err := s.update(ctx, v, id, in)
	return a, s.done("update", a, err)
}

func (s *Service) update(ctx context.Context, v Viewer, id string, in EditInput) (*model.Appointment, error) {
	e, err := parseEdit(in, s.hours.Location)
	if err != nil {
		return nil, err
	}
	var out model.Appointment
	err = s.mutate(ctx, v, id, requireParty, func(tx store.Tx, cur *model.Appointment) error {
		next, rescheduled := applyEdit(*cur, e)
		if rescheduled {
			if !s.hours.IsBookable(next.Start) {
				return apperr.Newf(apperr.OutOfHours, "%s is outside business hours",
					next.Start.In(s.hours.Location).Format("Mon 2006-01-02 15:04"))
			}
			if next.Status.Active() {
				if err := s.checkConflict(ctx, tx, &next); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateAppointment(ctx, &next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeUpdated, &out, v.ID)
	return &out, nil
}

// Cancel is allowed from any status for either party. Cancelling twice is a
// no-op.
func (s *Service) Cancel(ctx context.Context, v Viewer, id string) (*model.Appointment, error) {
	a, err := s.cancel(ctx, v, id)
	return a, s.done("cancel", a, err)
}

func (s *Service) cancel(ctx context.Context, v Viewer, id string) (*model.Appointment, error) {
	var (
		out     model.Appointment
		changed bool
	)
	err := s.mutate(ctx, v, id, requireParty, func(tx store.Tx, cur *model.Appointment) error {
		out = *cur
		if cur.Status == model.StatusCancelled {
			return nil
		}
		out = cancel(*cur)
		changed = true
		return tx.UpdateAppointment(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, events.TypeCancelled, &out, v.ID)
	}
	return &out, nil
}

// Delete destroys the record. It is not a status transition.
func (s *Service) Delete(ctx context.Context, v Viewer, id string) error {
	var gone model.Appointment
	err := s.mutate(ctx, v, id, requireParty, func(tx store.Tx, cur *model.Appointment) error {
		gone = *cur
		return tx.DeleteAppointment(ctx, id)
	})
	if err == nil {
		s.publish(ctx, events.TypeDeleted, &gone, v.ID)
		return s.done("delete", &gone, nil)
	}
	return s.done("delete", nil, err)
}

// mutate loads id to learn its lawyer, checks guard, then re-reads and
// applies fn under that lawyer's lock.
func (s *Service) mutate(ctx context.Context, v Viewer, id string,
	guard func(*model.Appointment, Viewer) error,
	fn func(tx store.Tx, cur *model.Appointment) error,
) error {
	if id == "" {
		return apperr.New(apperr.ValidationError, "id is required")
	}
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return storeErr(err, "load appointment")
	}
	if err := guard(a, v); err != nil {
		return err
	}
	err = s.store.WithLawyerLock(ctx, a.LawyerID, func(tx store.Tx) error {
		cur, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		return fn(tx, cur)
	})
	return storeErr(err, "update appointment")
}

// Get returns one appointment as the viewer may see it. Inactive records of
// other people are reported as not found.
func (s *Service) Get(ctx context.Context, v Viewer, id string) (View, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return View{}, storeErr(err, "load appointment")
	}
	view, ok := Project(a, v)
	if !ok {
		return View{}, apperr.Newf(apperr.NotFound, "appointment %s not found", id)
	}
	return view, nil
}

// ListForUser lists every appointment where userID is lawyer or client.
// Another viewer only sees what the visibility rules allow.
func (s *Service) ListForUser(ctx context.Context, v Viewer, userID string) ([]View, error) {
	if userID == "" {
		return nil, apperr.New(apperr.ValidationError, "userId is required")
	}
	list, err := s.store.FindAppointments(ctx, store.Filter{PartyID: userID})
	if err != nil {
		return nil, storeErr(err, "list appointments")
	}
	return projectAll(list, v), nil
}

// ListForLawyer is the lawyer's public calendar: active records only,
// sanitized unless the viewer is party to them.
func (s *Service) ListForLawyer(ctx context.Context, v Viewer, lawyerID string) ([]View, error) {
	if lawyerID == "" {
		return nil, apperr.New(apperr.ValidationError, "lawyerId is required")
	}
	list, err := s.store.FindAppointments(ctx, store.Filter{
		LawyerID: lawyerID,
		Statuses: model.ActiveStatuses,
	})
	if err != nil {
		return nil, storeErr(err, "list lawyer calendar")
	}
	return projectAll(list, v), nil
}

// ListPendingForLawyer is the lawyer's inbox, newest request first.
func (s *Service) ListPendingForLawyer(ctx context.Context, v Viewer, lawyerID string) ([]View, error) {
	if lawyerID == "" {
		return nil, apperr.New(apperr.ValidationError, "lawyerId is required")
	}
	if v.ID != lawyerID {
		return nil, apperr.New(apperr.Forbidden, "only the lawyer may read their pending requests")
	}
	list, err := s.store.FindAppointments(ctx, store.Filter{
		LawyerID: lawyerID,
		Statuses: []model.Status{model.StatusPending},
		Order:    store.ByRequestedDesc,
	})
	if err != nil {
		return nil, storeErr(err, "list pending requests")
	}
	return projectAll(list, v), nil
}

// CalendarFor merges userID's own appointments with lawyerID's calendar.
// Duplicates are dropped by id, keeping the first (own, full) copy.
func (s *Service) CalendarFor(ctx context.Context, v Viewer, userID, lawyerID string) ([]View, error) {
	own, err := s.ListForUser(ctx, v, userID)
	if err != nil {
		return nil, err
	}
	cal, err := s.ListForLawyer(ctx, v, lawyerID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(own)+len(cal))
	out := make([]View, 0, len(own)+len(cal))
	for _, view := range append(own, cal...) {
		if seen[view.ID] {
			continue
		}
		seen[view.ID] = true
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Service) publish(ctx context.Context, t events.Type, a *model.Appointment, actorID string) {
	metrics.Transitions.WithLabelValues(string(t)).Inc()
	if err := s.events.Publish(ctx, events.NewEvent(t, a, actorID, s.clock())); err != nil {
		metrics.EventPublishErrors.Inc()
		s.log.Warn("event publish failed", "type", t, "id", a.ID, "err", err)
	}
}

// done logs the outcome of a mutating operation and passes err through.
func (s *Service) done(op string, a *model.Appointment, err error) error {
	if err != nil {
		kind := apperr.KindOf(err)
		metrics.Failures.WithLabelValues(op, string(kind)).Inc()
		if kind == apperr.StorageError {
			s.log.Error("operation failed", "op", op, "kind", kind, "err", err)
		} else {
			s.log.Debug("operation refused", "op", op, "kind", kind, "err", err)
		}
		return err
	}
	s.log.Info("appointment "+op, "id", a.ID, "lawyer", a.LawyerID, "status", a.Status)
	return nil
}

// storeErr keeps typed errors and classifies raw store errors.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.NotFound, "appointment not found")
	case errors.Is(err, store.ErrOverlap):
		return apperr.Wrap(err, apperr.SlotConflict, "time conflicts with an existing appointment")
	default:
		return apperr.Wrap(err, apperr.StorageError, msg)
	}
}

func nonNil(p []string) []string {
	if p == nil {
		return []string{}
	}
	return append([]string(nil), p...)
}

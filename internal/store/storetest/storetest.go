// Package storetest checks a store.Store implementation against the
// behaviour the scheduling service relies on.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/store"
)

var base = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func appointment(lawyer, client string, start time.Time, st model.Status) *model.Appointment {
	a := &model.Appointment{
		ID:              uuid.New().String(),
		LawyerID:        lawyer,
		ClientID:        client,
		Start:           start,
		DurationMinutes: 60,
		Title:           "Consultation",
		Location:        "Room 1",
		Participants:    []string{"a@example.com", "b@example.com"},
		Status:          st,
		RequestMessage:  "hello",
		RequestedAt:     base.Add(-24 * time.Hour),
	}
	if st != model.StatusPending {
		t := a.RequestedAt
		a.RespondedAt = &t
	}
	return a
}

// Run exercises st. Lawyer and client ids are randomised so a shared database
// can be reused between runs.
func Run(t *testing.T, st store.Store) {
	ctx := context.Background()
	lawyer := "lawyer-" + uuid.New().String()[:8]
	client := "client-" + uuid.New().String()[:8]

	t.Run("insert and get", func(t *testing.T) {
		a := appointment(lawyer, client, base, model.StatusPending)
		if err := st.InsertAppointment(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
		got, err := st.GetAppointment(ctx, a.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.Start.Equal(a.Start) || got.DurationMinutes != 60 || got.Status != model.StatusPending {
			t.Errorf("got %+v", got)
		}
		if len(got.Participants) != 2 || got.Participants[1] != "b@example.com" {
			t.Errorf("participants = %v", got.Participants)
		}
		if got.RespondedAt != nil {
			t.Errorf("respondedAt = %v", got.RespondedAt)
		}
		if err := st.InsertAppointment(ctx, a); !errors.Is(err, store.ErrDuplicate) {
			t.Errorf("duplicate insert: %v", err)
		}
	})

	t.Run("missing records", func(t *testing.T) {
		if _, err := st.GetAppointment(ctx, uuid.New().String()); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("get: %v", err)
		}
		ghost := appointment(lawyer, client, base, model.StatusPending)
		if err := st.UpdateAppointment(ctx, ghost); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("update: %v", err)
		}
		if err := st.DeleteAppointment(ctx, ghost.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("delete: %v", err)
		}
	})

	t.Run("filters", func(t *testing.T) {
		l := "lawyer-" + uuid.New().String()[:8]
		c := "client-" + uuid.New().String()[:8]
		early := appointment(l, c, base.Add(24*time.Hour), model.StatusConfirmed)
		late := appointment(l, "someone", base.Add(26*time.Hour), model.StatusPending)
		late.RequestedAt = base
		gone := appointment(l, c, base.Add(28*time.Hour), model.StatusCancelled)
		for _, a := range []*model.Appointment{late, gone, early} {
			if err := st.InsertAppointment(ctx, a); err != nil {
				t.Fatal(err)
			}
		}

		check := func(name string, f store.Filter, want ...string) {
			t.Helper()
			got, err := st.FindAppointments(ctx, f)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			ids := make([]string, len(got))
			for i := range got {
				ids[i] = got[i].ID
			}
			if fmt.Sprint(ids) != fmt.Sprint(want) {
				t.Errorf("%s: got %v, want %v", name, ids, want)
			}
		}
		check("by lawyer", store.Filter{LawyerID: l}, early.ID, late.ID, gone.ID)
		check("active", store.Filter{LawyerID: l, Statuses: model.ActiveStatuses}, early.ID, late.ID)
		check("party", store.Filter{PartyID: c}, early.ID, gone.ID)
		check("exclude", store.Filter{LawyerID: l, ExcludeID: early.ID}, late.ID, gone.ID)
		check("start before", store.Filter{LawyerID: l, StartBefore: late.Start}, early.ID)
		check("newest request first",
			store.Filter{LawyerID: l, Statuses: model.ActiveStatuses, Order: store.ByRequestedDesc},
			late.ID, early.ID)
	})

	t.Run("update and delete", func(t *testing.T) {
		a := appointment(lawyer, client, base.Add(48*time.Hour), model.StatusPending)
		if err := st.InsertAppointment(ctx, a); err != nil {
			t.Fatal(err)
		}
		now := base
		a.Status = model.StatusConfirmed
		a.ResponseMessage = "ok"
		a.RespondedAt = &now
		a.Participants = nil
		if err := st.UpdateAppointment(ctx, a); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, err := st.GetAppointment(ctx, a.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != model.StatusConfirmed || got.ResponseMessage != "ok" || got.RespondedAt == nil {
			t.Errorf("after update: %+v", got)
		}
		if len(got.Participants) != 0 {
			t.Errorf("participants = %v", got.Participants)
		}
		if err := st.DeleteAppointment(ctx, a.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := st.GetAppointment(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("get after delete: %v", err)
		}
	})

	t.Run("lock rolls back on error", func(t *testing.T) {
		a := appointment(lawyer, client, base.Add(72*time.Hour), model.StatusPending)
		boom := errors.New("boom")
		err := st.WithLawyerLock(ctx, lawyer, func(tx store.Tx) error {
			if err := tx.InsertAppointment(ctx, a); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithLawyerLock = %v", err)
		}
		if _, err := st.GetAppointment(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("rolled back insert is visible: %v", err)
		}
	})

	t.Run("lock serialises check then insert", func(t *testing.T) {
		l := "lawyer-" + uuid.New().String()[:8]
		slot := base.Add(96 * time.Hour)
		const n = 8
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			inserted int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := st.WithLawyerLock(ctx, l, func(tx store.Tx) error {
					existing, err := tx.FindAppointments(ctx, store.Filter{LawyerID: l, Statuses: model.ActiveStatuses})
					if err != nil {
						return err
					}
					if len(existing) > 0 {
						return nil
					}
					if err := tx.InsertAppointment(ctx, appointment(l, "c", slot, model.StatusPending)); err != nil {
						return err
					}
					mu.Lock()
					inserted++
					mu.Unlock()
					return nil
				})
				if err != nil {
					t.Errorf("WithLawyerLock: %v", err)
				}
			}()
		}
		wg.Wait()
		if inserted != 1 {
			t.Errorf("%d goroutines inserted into the same slot", inserted)
		}
	})
}

// RunUsers exercises a store.Users implementation.
func RunUsers(t *testing.T, us store.Users) {
	ctx := context.Background()
	email := fmt.Sprintf("user-%s@example.com", uuid.New().String()[:8])
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: "hash",
		Name:         "Anton",
		Role:         model.RoleLawyer,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	if err := us.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := *u
	dup.ID = uuid.New().String()
	if err := us.CreateUser(ctx, &dup); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("duplicate email: %v", err)
	}

	got, err := us.UserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if got.ID != u.ID || got.Role != model.RoleLawyer {
		t.Errorf("got %+v", got)
	}
	if _, err := us.UserByEmail(ctx, "nobody-"+email); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing user: %v", err)
	}

	lawyers, err := us.UsersByRole(ctx, model.RoleLawyer)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, l := range lawyers {
		found = found || l.ID == u.ID
	}
	if !found {
		t.Errorf("UsersByRole(lawyer) misses %s", u.ID)
	}
}

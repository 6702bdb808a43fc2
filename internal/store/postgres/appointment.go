package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/store"
)

const appointmentCols = `id, lawyer_id, client_id, start_time, duration_minutes,
	title, location, participants, status, request_message, response_message,
	requested_at, responded_at`

func (s *Store) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	participants := a.Participants
	if participants == nil {
		participants = []string{}
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO appointments (`+appointmentCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.LawyerID, a.ClientID, a.Start, a.DurationMinutes,
		a.Title, a.Location, participants, string(a.Status), a.RequestMessage, a.ResponseMessage,
		a.RequestedAt, a.RespondedAt,
	)
	return mapErr(err)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (s *Store) FindAppointments(ctx context.Context, f store.Filter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.LawyerID != "" {
		where = append(where, "lawyer_id = "+arg(f.LawyerID))
	}
	if f.ClientID != "" {
		where = append(where, "client_id = "+arg(f.ClientID))
	}
	if f.PartyID != "" {
		p := arg(f.PartyID)
		where = append(where, "(lawyer_id = "+p+" OR client_id = "+p+")")
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if f.ExcludeID != "" {
		where = append(where, "id <> "+arg(f.ExcludeID))
	}
	if !f.StartBefore.IsZero() {
		where = append(where, "start_time < "+arg(f.StartBefore))
	}

	q := `SELECT ` + appointmentCols + ` FROM appointments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch f.Order {
	case store.ByRequestedDesc:
		q += ` ORDER BY requested_at DESC, id`
	default:
		q += ` ORDER BY start_time, id`
	}

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	participants := a.Participants
	if participants == nil {
		participants = []string{}
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE appointments
		 SET start_time=$1, duration_minutes=$2, title=$3, location=$4, participants=$5,
		     status=$6, request_message=$7, response_message=$8, responded_at=$9
		 WHERE id=$10`,
		a.Start, a.DurationMinutes, a.Title, a.Location, participants,
		string(a.Status), a.RequestMessage, a.ResponseMessage, a.RespondedAt, a.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM appointments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (*model.Appointment, error) {
	var (
		a      model.Appointment
		status string
		resp   *time.Time
	)
	if err := row.Scan(
		&a.ID, &a.LawyerID, &a.ClientID, &a.Start, &a.DurationMinutes,
		&a.Title, &a.Location, &a.Participants, &status, &a.RequestMessage, &a.ResponseMessage,
		&a.RequestedAt, &resp,
	); err != nil {
		return nil, err
	}
	a.Status = model.Status(status)
	a.Start = a.Start.UTC()
	a.RequestedAt = a.RequestedAt.UTC()
	if resp != nil {
		t := resp.UTC()
		a.RespondedAt = &t
	}
	return &a, nil
}

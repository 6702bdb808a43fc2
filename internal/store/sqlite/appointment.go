package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/store"
)

const appointmentCols = `id, lawyer_id, client_id, start_ms, duration_minutes,
	title, location, participants, status, request_message, response_message,
	requested_ms, responded_ms`

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *Store) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	participants, err := encodeParticipants(a.Participants)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO appointments (`+appointmentCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.LawyerID, a.ClientID, toMillis(a.Start), a.DurationMinutes,
		a.Title, a.Location, participants, string(a.Status), a.RequestMessage, a.ResponseMessage,
		toMillis(a.RequestedAt), respondedMillis(a.RespondedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: appointment %s", store.ErrDuplicate, a.ID)
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

func (s *Store) FindAppointments(ctx context.Context, f store.Filter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if f.LawyerID != "" {
		where = append(where, "lawyer_id = ?")
		args = append(args, f.LawyerID)
	}
	if f.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.PartyID != "" {
		where = append(where, "(lawyer_id = ? OR client_id = ?)")
		args = append(args, f.PartyID, f.PartyID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.ExcludeID != "" {
		where = append(where, "id <> ?")
		args = append(args, f.ExcludeID)
	}
	if !f.StartBefore.IsZero() {
		where = append(where, "start_ms < ?")
		args = append(args, toMillis(f.StartBefore))
	}

	q := `SELECT ` + appointmentCols + ` FROM appointments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch f.Order {
	case store.ByRequestedDesc:
		q += ` ORDER BY requested_ms DESC, id`
	default:
		q += ` ORDER BY start_ms, id`
	}

	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	participants, err := encodeParticipants(a.Participants)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE appointments
		 SET start_ms = ?, duration_minutes = ?, title = ?, location = ?, participants = ?,
		     status = ?, request_message = ?, response_message = ?, responded_ms = ?
		 WHERE id = ?`,
		toMillis(a.Start), a.DurationMinutes, a.Title, a.Location, participants,
		string(a.Status), a.RequestMessage, a.ResponseMessage, respondedMillis(a.RespondedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return requireRow(res)
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func respondedMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func encodeParticipants(p []string) (string, error) {
	if p == nil {
		p = []string{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode participants: %w", err)
	}
	return string(b), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (*model.Appointment, error) {
	var (
		a            model.Appointment
		startMS      int64
		requestedMS  int64
		respondedMS  sql.NullInt64
		status       string
		participants string
	)
	if err := row.Scan(
		&a.ID, &a.LawyerID, &a.ClientID, &startMS, &a.DurationMinutes,
		&a.Title, &a.Location, &participants, &status, &a.RequestMessage, &a.ResponseMessage,
		&requestedMS, &respondedMS,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(participants), &a.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	a.Start = fromMillis(startMS)
	a.RequestedAt = fromMillis(requestedMS)
	if respondedMS.Valid {
		t := fromMillis(respondedMS.Int64)
		a.RespondedAt = &t
	}
	a.Status = model.Status(status)
	return &a, nil
}

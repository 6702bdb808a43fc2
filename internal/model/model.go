package model

import "time"

type Role string

const (
	RoleLawyer Role = "lawyer"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleLawyer, RoleClient, RoleAdmin:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Active statuses occupy the lawyer's time.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ActiveStatuses is the set searched by the conflict check.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Appointment struct {
	ID              string
	LawyerID        string
	ClientID        string
	Start           time.Time
	DurationMinutes int
	Title           string
	Location        string
	Participants    []string
	Status          Status
	RequestMessage  string
	ResponseMessage string
	RequestedAt     time.Time
	RespondedAt     *time.Time
}

// End is derived from Start and DurationMinutes and never stored.
func (a *Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (a Appointment) Clone() Appointment {
	if a.Participants != nil {
		a.Participants = append([]string(nil), a.Participants...)
	}
	if a.RespondedAt != nil {
		t := *a.RespondedAt
		a.RespondedAt = &t
	}
	return a
}

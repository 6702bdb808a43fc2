// Package store defines the record-store contract the scheduling engine is
// written against. Implementations live in the postgres and sqlite
// subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"lexcal-scheduler/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")

	// ErrOverlap is returned by backends that enforce the no-overlap rule
	// themselves (exclusion constraint) when a write would break it.
	ErrOverlap = errors.New("overlapping active appointment")
)

type Order int

const (
	ByStart Order = iota
	ByRequestedDesc
)

// Filter selects appointments. Zero-valued fields do not constrain the query.
type Filter struct {
	LawyerID string
	ClientID string
	// PartyID matches records where the user is either lawyer or client.
	PartyID   string
	Statuses  []model.Status
	ExcludeID string
	// StartBefore keeps records with start < StartBefore.
	StartBefore time.Time
	Order       Order
}

// Tx is the per-record capability set. Store implements it directly; inside
// WithLawyerLock the same calls run on the locked transaction.
type Tx interface {
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	FindAppointments(ctx context.Context, f Filter) ([]model.Appointment, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	// UpdateAppointment replaces every mutable column of the row with a.ID.
	UpdateAppointment(ctx context.Context, a *model.Appointment) error
	DeleteAppointment(ctx context.Context, id string) error
}

type Store interface {
	Tx
	// WithLawyerLock runs fn inside one transaction that is serialised with
	// every other WithLawyerLock call for the same lawyer. fn's error rolls
	// the transaction back.
	WithLawyerLock(ctx context.Context, lawyerID string, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UsersByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

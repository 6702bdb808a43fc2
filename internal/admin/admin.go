// Package admin holds the operator commands run by lexcal-admin.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"lexcal-scheduler/internal/auth"
	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/schedule"
	"lexcal-scheduler/internal/store"
	"lexcal-scheduler/internal/store/backend"
)

// Context is passed to every command's Run.
type Context struct {
	Ctx    context.Context
	Store  backend.Backend
	Hours  schedule.BusinessHours
	Logger *log.Logger
	Out    io.Writer
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *Context) error {
	if err := ctx.Store.Migrate(ctx.Ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	ctx.Logger.Info("schema up to date")
	return nil
}

type seedUser struct {
	name, email, password string
	role                  model.Role
}

var exampleUsers = []seedUser{
	{"Admin", "admin@example.com", "admin123", model.RoleAdmin},
	{"Anwalt Anton", "anwalt@example.com", "anwalt123", model.RoleLawyer},
	{"Mandant Maria", "mandant@example.com", "mandant123", model.RoleClient},
}

// SeedCmd creates the example accounts. Existing emails are left alone.
type SeedCmd struct{}

func (c *SeedCmd) Run(ctx *Context) error {
	for _, su := range exampleUsers {
		_, err := ctx.Store.UserByEmail(ctx.Ctx, su.email)
		if err == nil {
			fmt.Fprintf(ctx.Out, "%s already exists: %s\n", su.role, su.email)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("look up %s: %w", su.email, err)
		}

		hash, err := auth.HashPassword(su.password)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		u := &model.User{
			ID:           uuid.New().String(),
			Email:        su.email,
			PasswordHash: hash,
			Name:         su.name,
			Role:         su.role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := ctx.Store.CreateUser(ctx.Ctx, u); err != nil {
			return fmt.Errorf("create %s: %w", su.email, err)
		}
		fmt.Fprintf(ctx.Out, "%s created: %s password: %s\n", su.role, su.email, su.password)
	}
	return nil
}

// CheckSlotCmd reports whether a start time is bookable and, with --lawyer,
// whether it collides with that lawyer's calendar.
type CheckSlotCmd struct {
	Time     string `arg:"" help:"Start time, RFC 3339 or 2006-01-02T15:04 in the business timezone."`
	Lawyer   string `help:"Lawyer id to check for conflicts."`
	Duration int    `help:"Duration in minutes." default:"60"`
}

func (c *CheckSlotCmd) Run(ctx *Context) error {
	start, err := schedule.ParseTime(c.Time, ctx.Hours.Location)
	if err != nil {
		return err
	}
	local := start.In(ctx.Hours.Location).Format("Mon 2006-01-02 15:04 MST")
	if !ctx.Hours.IsBookable(start) {
		fmt.Fprintf(ctx.Out, "%s: outside business hours\n", local)
		return nil
	}
	if c.Lawyer == "" {
		fmt.Fprintf(ctx.Out, "%s: bookable\n", local)
		return nil
	}
	if c.Duration <= 0 {
		return errors.New("--duration must be positive")
	}
	end := start.Add(time.Duration(c.Duration) * time.Minute)
	clash, err := schedule.HasConflict(ctx.Ctx, ctx.Store, c.Lawyer, start, end, "")
	if err != nil {
		return fmt.Errorf("check conflicts: %w", err)
	}
	if clash {
		fmt.Fprintf(ctx.Out, "%s: conflicts with an existing appointment\n", local)
		return nil
	}
	fmt.Fprintf(ctx.Out, "%s: bookable\n", local)
	return nil
}

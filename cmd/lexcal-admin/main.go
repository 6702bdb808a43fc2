package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"lexcal-scheduler/internal/admin"
	"lexcal-scheduler/internal/config"
	"lexcal-scheduler/internal/logging"
	"lexcal-scheduler/internal/store/backend"
)

var CLI struct {
	EnvFile string `help:"Environment file to load." default:".env" type:"path"`

	Migrate   admin.MigrateCmd   `cmd:"" help:"Apply the database schema."`
	Seed      admin.SeedCmd      `cmd:"" help:"Create the example admin, lawyer and client accounts."`
	CheckSlot admin.CheckSlotCmd `cmd:"" help:"Check a start time against business hours and, optionally, a lawyer's calendar."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("lexcal-admin"),
		kong.Description("Operator tasks for the lexcal scheduling service."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(CLI.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Prefix: "lexcal-admin"})
	defer closeLog.Close()

	ctx := context.Background()
	st, err := backend.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	err = kctx.Run(&admin.Context{
		Ctx:    ctx,
		Store:  st,
		Hours:  cfg.Hours,
		Logger: logger,
		Out:    os.Stdout,
	})
	if err != nil {
		logger.Error("command failed", "cmd", kctx.Command(), "err", err)
		st.Close()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"os"
	"time"

	"colabai/sources/console"
	"colabai/sources/persistence"
	"colabai/sources/platform"
	"colabai/sources/repository"
	"colabai/sources/tokens"
	"colabai/sources/tracing"

	"github.com/alecthomas/kong"
	"gorm.io/gorm"
)

type CLI struct {
	Version kong.VersionFlag `help:"Print version and exit"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the ledger API with health and metrics servers"`
	Migrate MigrateCmd `cmd:"" help:"Create or update ledger tables"`
	Ledger  struct {
		Init  LedgerInitCmd  `cmd:"" help:"Create a user's ledger if missing"`
		Stats LedgerStatsCmd `cmd:"" help:"Show a user's ledger and recent activity"`
		Limit LedgerLimitCmd `cmd:"" help:"Change a user's monthly token limit"`
	} `cmd:"" help:"Administer token ledgers"`
}

type ServeCmd struct{}

func (c *ServeCmd) Run() error {
	serve()
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run() error {
	var (
		db  *gorm.DB
		log *tracing.Logger
	)

	return oneshot(func(ctx context.Context) error {
		return persistence.Migrate(ctx, db, log)
	}, &db, &log)
}

type LedgerInitCmd struct {
	User  string `arg:"" help:"User id (uuid)"`
	Limit *int64 `help:"Monthly token limit, defaults to tokens.default_monthly_limit"`
}

func (c *LedgerInitCmd) Run() error {
	userID, err := platform.ParseUUID(c.User, "user")
	if err != nil {
		return err
	}

	var accountant *tokens.Accountant
	return oneshot(func(ctx context.Context) error {
		if _, err := accountant.InitializeLedger(ctx, userID, c.Limit); err != nil {
			return err
		}

		stats, err := accountant.GetStatsForUser(ctx, userID, 1)
		if err != nil {
			return err
		}
		return console.RenderStats(os.Stdout, userID, stats, nil, time.Now())
	}, &accountant)
}

type LedgerStatsCmd struct {
	User  string `arg:"" help:"User id (uuid)"`
	Limit int    `help:"Recent usage records to show" default:"10"`
}

func (c *LedgerStatsCmd) Run() error {
	userID, err := platform.ParseUUID(c.User, "user")
	if err != nil {
		return err
	}

	var (
		accountant *tokens.Accountant
		usage      *repository.UsageRepository
		config     *tokens.Config
		log        *tracing.Logger
	)

	return oneshot(func(ctx context.Context) error {
		stats, err := accountant.GetStatsForUser(ctx, userID, c.Limit)
		if err != nil {
			return err
		}

		now := time.Now()
		var commands []repository.CommandUsage
		if stats != nil {
			commands, err = usage.GetUserUsageByCommand(log, userID, tokens.MonthStart(now, config.Location))
			if err != nil {
				return err
			}
		}

		return console.RenderStats(os.Stdout, userID, stats, commands, now)
	}, &accountant, &usage, &config, &log)
}

type LedgerLimitCmd struct {
	User  string `arg:"" help:"User id (uuid)"`
	Limit int64  `arg:"" help:"New monthly token limit"`
}

func (c *LedgerLimitCmd) Run() error {
	userID, err := platform.ParseUUID(c.User, "user")
	if err != nil {
		return err
	}

	var accountant *tokens.Accountant
	return oneshot(func(ctx context.Context) error {
		ledger, err := accountant.SetMonthlyLimit(ctx, userID, c.Limit)
		if err != nil {
			return err
		}
		return console.RenderLedger(os.Stdout, ledger)
	}, &accountant)
}

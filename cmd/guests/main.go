// Command guests imports the invitation list into the guest table.
//
//	guests -file invitations.yaml [-dry-run]
//
// Existing guests keep their RSVP; names and admin flags present in the
// file are updated.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/rsvpkit/wedding/db"
	"github.com/rsvpkit/wedding/internal/invitelist"
	"github.com/rsvpkit/wedding/pkg/config"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/pg"
	"github.com/rsvpkit/wedding/svc/guest"
)

type cliConfig struct {
	Store pg.Config
}

func main() {
	file := flag.String("file", "invitations.yaml", "invitation list (YAML)")
	dryRun := flag.Bool("dry-run", false, "parse and print without writing")
	flag.Parse()

	log := logger.New(logger.WithEnvironment(os.Getenv("APP_ENV"), "guests"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *file, *dryRun, log); err != nil {
		log.Error("import failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, dryRun bool, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	invitees, err := invitelist.Parse(f)
	if err != nil {
		return err
	}

	if dryRun {
		for _, in := range invitees {
			admin := ""
			if in.IsAdmin != nil && *in.IsAdmin {
				admin = " (admin)"
			}
			fmt.Printf("%s\t%s%s\n", in.Email, in.Name, admin)
		}
		log.Info("dry run", logger.Count("guests", len(invitees)))
		return nil
	}

	var cfg cliConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	pool, err := pg.Connect(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Store.AutoMigrate {
		if err := pg.Migrate(ctx, pool, cfg.Store, db.Migrations, db.Dir, log); err != nil {
			return err
		}
	}

	repo := guest.NewRepository(pool)
	for _, in := range invitees {
		g, err := repo.Upsert(ctx, in)
		if err != nil {
			return fmt.Errorf("%s: %w", in.Email, err)
		}
		log.Debug("guest imported", logger.Email(g.Email), logger.GuestID(g.ID))
	}
	log.Info("invitation list imported", logger.Count("guests", len(invitees)))
	return nil
}

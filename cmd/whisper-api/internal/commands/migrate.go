package commands

import (
	"context"
	"errors"
	"os"

	pgclient "github.com/StricklySoft/whisper-grc/pkg/clients/postgres"
	pgstore "github.com/StricklySoft/whisper-grc/pkg/store/postgres"
)

// MigrateCmd applies the database schema and exits.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := loadConfig(g, nil)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg, g.Debug)
	if !cfg.Postgres.Enabled() {
		return errors.New("migrate: DATABASE_URL or POSTGRES_HOST must be set")
	}

	client, err := pgclient.NewClient(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := pgstore.New(client).Migrate(ctx); err != nil {
		return err
	}
	logger.Info("database schema applied")
	return nil
}

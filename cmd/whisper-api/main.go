package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/StricklySoft/whisper-grc/cmd/whisper-api/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool             `help:"Enable debug logging."`
		Config  string           `help:"Path to a YAML or JSON config file." type:"path" env:"WHISPER_CONFIG"`
		Version kong.VersionFlag `help:"Print the version and exit."`

		Serve       commands.ServeCmd       `cmd:"" default:"1" help:"Start the API server."`
		CheckConfig commands.CheckConfigCmd `cmd:"" help:"Validate configuration and exit."`
		Migrate     commands.MigrateCmd     `cmd:"" help:"Apply the database schema."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("whisper-api"),
		kong.Description("Whisper GRC API server."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, ConfigFile: cli.Config, Version: version})
	cmd.FatalIfErrorf(err)
}

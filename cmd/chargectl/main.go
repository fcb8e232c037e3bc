package main

import (
	"context"
	"log"
	"os"

	"github.com/rpattn/chargemap/internal/config"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "chargectl",
		Usage: "Inspect and export charging point datasets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Directory containing config.yaml",
				Value: config.Dir(),
			},
		},
		Commands: []*cli.Command{
			InspectCommand(),
			ExportCommand(),
			MigrateCommand(),
		},
	}
}

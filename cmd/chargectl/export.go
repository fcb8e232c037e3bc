package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpattn/chargemap/internal/dashboard"
	"github.com/rpattn/chargemap/internal/export"
	"github.com/rpattn/chargemap/internal/geomap"
	"github.com/urfave/cli/v3"
)

// ExportCommand creates the export command
func ExportCommand() *cli.Command {
	flags := append(selectionFlags(),
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    "Output file; the extension selects csv or xlsx",
			Required: true,
		},
	)
	return &cli.Command{
		Name:  "export",
		Usage: "Write the filtered dataset as CSV or XLSX",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			output := c.String("output")
			format, err := export.ParseFormat(filepath.Ext(output))
			if err != nil {
				return err
			}

			cfg, result, err := loadDataset(ctx, c)
			if err != nil {
				return err
			}
			if result.Err != nil {
				return fmt.Errorf("loading %s: %w", result.FileName, result.Err)
			}

			view := dashboard.BuildView(result, selectionFromFlags(c), geomap.DefaultOptions())
			if len(view.Dropped) > 0 {
				return fmt.Errorf("no value in %s matches %s", result.FileName, describeDrops(view.Dropped))
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer func() {
				if err := f.Close(); err != nil {
					fmt.Printf("Warning: failed to close %s: %v\n", output, err)
				}
			}()

			written, err := export.NewService(cfg.Dataset.Delimiter).Write(f, view.Filtered, format)
			if err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Println(metaStyle.Render(fmt.Sprintf("%d filas, %d bytes -> %s", view.Filtered.Len(), written, output)))
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpattn/chargemap/internal/config"
	"github.com/rpattn/chargemap/internal/dashboard"
	"github.com/rpattn/chargemap/internal/domain"
	"github.com/rpattn/chargemap/internal/filter"
	"github.com/rpattn/chargemap/internal/ingestion"
	"github.com/urfave/cli/v3"
)

// selectionFlags mirror the dashboard query parameters.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "file", Usage: "Dataset file (defaults to dataset.path)"},
		&cli.StringFlag{Name: dashboard.ParamDistrict, Usage: "District filter", Value: domain.All},
		&cli.StringFlag{Name: dashboard.ParamNeighborhood, Usage: "Neighborhood filter", Value: domain.All},
		&cli.StringFlag{Name: dashboard.ParamOperator, Usage: "Operator filter", Value: domain.All},
		&cli.StringFlag{Name: dashboard.ParamSiteType, Usage: "Site type filter", Value: domain.All},
		&cli.StringFlag{Name: dashboard.ParamStatus, Usage: "Status filter", Value: domain.All},
		&cli.StringSliceFlag{Name: dashboard.ParamKeyword, Usage: "Equipment keyword. Can be used multiple times"},
	}
}

func selectionFromFlags(c *cli.Command) domain.Selection {
	sel := domain.Selection{
		District:     c.String(dashboard.ParamDistrict),
		Neighborhood: c.String(dashboard.ParamNeighborhood),
		Operator:     c.String(dashboard.ParamOperator),
		SiteType:     c.String(dashboard.ParamSiteType),
		Status:       c.String(dashboard.ParamStatus),
		Keywords:     c.StringSlice(dashboard.ParamKeyword),
	}
	return sel.Normalize()
}

// describeDrops renders discarded filters as flag=value pairs.
func describeDrops(drops []filter.Drop) string {
	parts := make([]string, len(drops))
	for idx, drop := range drops {
		parts[idx] = fmt.Sprintf("--%s=%q", dashboard.ParamFor(drop.Column), drop.Value)
	}
	return strings.Join(parts, ", ")
}

// loadDataset reads the file named by --file, or the configured default.
// Spreadsheets go through the upload path so their extension picks the parser.
func loadDataset(ctx context.Context, c *cli.Command) (config.Config, ingestion.Result, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, ingestion.Result{}, fmt.Errorf("loading config: %w", err)
	}

	path := c.String("file")
	if path == "" {
		path = cfg.Dataset.Path
	}

	loader := ingestion.NewLoader(cfg.Dataset.Delimiter, nil)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		f, err := os.Open(path)
		if err != nil {
			return cfg, ingestion.Result{}, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		return cfg, loader.LoadUpload(ctx, filepath.Base(path), f), nil
	default:
		return cfg, loader.LoadFile(ctx, path), nil
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rpattn/chargemap/internal/dashboard"
	"github.com/rpattn/chargemap/internal/domain"
	"github.com/rpattn/chargemap/internal/geomap"
	"github.com/urfave/cli/v3"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// InspectCommand creates the inspect command
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Load a dataset, apply filters and print metrics, options and map centre",
		Flags: selectionFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, result, err := loadDataset(ctx, c)
			if err != nil {
				return err
			}

			mapOpts := geomap.DefaultOptions()
			mapOpts.Zoom = cfg.Map.Zoom
			view := dashboard.BuildView(result, selectionFromFlags(c), mapOpts)

			fmt.Println(renderInspect(cfg.UI.Title, view))
			return nil
		},
	}
}

func renderInspect(title string, view dashboard.View) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf("%s: %s", view.Result.Source, view.Result.FileName)))
	b.WriteString("\n")

	if view.Result.Err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error al cargar el archivo: %v", view.Result.Err)))
		b.WriteString("\n")
	}
	if !view.HasData() {
		b.WriteString(warnStyle.Render("Carga datos para ver filtros y mapa"))
		return b.String()
	}

	for _, drop := range view.Dropped {
		b.WriteString(warnStyle.Render(fmt.Sprintf("Filtro ignorado: --%s=%q no coincide con ningún valor", dashboard.ParamFor(drop.Column), drop.Value)))
		b.WriteString("\n")
	}

	metrics := []string{fmt.Sprintf("Total de cargadores: %d", view.Metrics.Total)}
	if view.Metrics.HasOperators {
		metrics = append(metrics, fmt.Sprintf("Operadores únicos: %d", view.Metrics.Operators))
	}
	if view.Metrics.HasSiteTypes {
		metrics = append(metrics, fmt.Sprintf("Tipos de emplazamiento: %d", view.Metrics.SiteTypes))
	}
	b.WriteString(summaryStyle.Render(strings.Join(metrics, "  |  ")))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Filtros"))
	b.WriteString("\n")
	for _, column := range domain.CategoricalColumns {
		choices := view.Options.For(column)
		if choices == nil {
			continue
		}
		fmt.Fprintf(&b, "  %-24s %-20s %s\n", column, view.Selection.Choice(column),
			metaStyle.Render(fmt.Sprintf("(%d opciones)", len(choices)-1)))
	}
	if view.Options.Keywords != nil {
		fmt.Fprintf(&b, "  %-24s %-20s %s\n", domain.ColumnEquipment, strings.Join(view.Selection.Keywords, ", "),
			metaStyle.Render(fmt.Sprintf("(%d palabras clave)", len(view.Options.Keywords))))
	}

	b.WriteString(headerStyle.Render("Mapa"))
	b.WriteString("\n")
	switch {
	case view.MapErr == nil:
		fmt.Fprintf(&b, "  centro %.6f, %.6f  zoom %.0f  puntos %d", view.Map.View.Latitude, view.Map.View.Longitude, view.Map.View.Zoom, len(view.Map.Points))
		if view.Map.Skipped > 0 {
			b.WriteString(metaStyle.Render(fmt.Sprintf("  (%d sin coordenadas)", view.Map.Skipped)))
		}
	case errors.Is(view.MapErr, geomap.ErrMissingColumns):
		b.WriteString(errorStyle.Render("  " + view.MapErr.Error()))
	default:
		b.WriteString(warnStyle.Render("  " + view.MapErr.Error()))
	}
	return b.String()
}

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Pal-droid/anizone/internal/util"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	dayStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E4572E"))
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search anime across the configured sites",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(v)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		out, err := app.SearchAnime(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("search failed: %s", util.ErrorMessage(err))
		}

		w := cmd.OutOrStdout()
		if len(out.Items) == 0 {
			_, _ = fmt.Fprintln(w, "No results.")
			return nil
		}
		for i, item := range out.Items {
			line := fmt.Sprintf("%2d. %s", i+1, titleStyle.Render(item.Title))
			if item.HasMultiServers {
				line += dimStyle.Render(fmt.Sprintf("  [%d sources]", len(item.Sources)))
			}
			_, _ = fmt.Fprintln(w, line)
			_, _ = fmt.Fprintln(w, "    "+dimStyle.Render(item.Href))
		}
		if !out.Reconciled {
			_, _ = fmt.Fprintln(w, dimStyle.Render("(single-site results)"))
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show this week's broadcast schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(v)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		days, err := app.WeekSchedule(cmd.Context())
		if err != nil {
			return fmt.Errorf("schedule unavailable: %s", util.ErrorMessage(err))
		}
		w := cmd.OutOrStdout()
		for _, day := range days {
			_, _ = fmt.Fprintln(w, dayStyle.Render(fmt.Sprintf("%s  %s", day.Day, day.Date.Format("02/01"))))
			for _, it := range day.Items {
				_, _ = fmt.Fprintf(w, "  %-5s %s %s\n", it.Time, it.Title, dimStyle.Render(it.Episode))
			}
		}
		return nil
	},
}

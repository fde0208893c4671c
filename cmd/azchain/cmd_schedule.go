package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/microsoft/azchain/internal/argtable"
	"github.com/microsoft/azchain/internal/schedule"
	"github.com/spf13/cobra"
)

func newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Convert backup schedules between timespans and cron",
		Long: `Backup policies accept "every N days" as either a timespan such as 7d or
the cron expression 0 0 */7 * *. N ranges from 1 to 30.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "to-cron <timespan>",
			Short:   "Convert a timespan such as 7d to cron",
			Example: "azchain schedule to-cron 7d",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cron, err := schedule.TimespanToCron(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cron) //nolint:errcheck
				return nil
			},
		},
		&cobra.Command{
			Use:     "to-timespan <cron>",
			Short:   "Convert a cron expression such as \"0 0 */7 * *\" to a timespan",
			Example: `azchain schedule to-timespan "0 0 */7 * *"`,
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				// unquoted fields arrive as separate arguments
				expr := strings.Join(args, " ")
				timespan, ok := schedule.CronToTimespan(expr)
				if !ok {
					return fmt.Errorf("no timespan equivalent for %q", expr)
				}
				fmt.Fprintln(cmd.OutOrStdout(), timespan) //nolint:errcheck
				return nil
			},
		},
		&cobra.Command{
			Use:   "table",
			Short: "Print every supported timespan with its cron form",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				printScheduleTable(cmd.OutOrStdout(), schedule.Table())
				return nil
			},
		},
		newScheduleNextCommand(),
	)
	return cmd
}

const dateLayout = "2006-01-02"

var scheduleNextArgs = argtable.Table{
	{Name: "every", Help: "Recurrence", Kind: argtable.KindTimespan, Required: true},
	{Name: "count", Short: "n", Help: "Number of runs to list", Kind: argtable.KindInt, Default: 5},
	{Name: "from", Help: "List runs after this date (YYYY-MM-DD, UTC; default now)", Kind: argtable.KindString},
}

func newScheduleNextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "next",
		Short:   "List the next times a schedule runs",
		Example: "azchain schedule next --every 7d --count 3",
		Args:    cobra.NoArgs,
	}
	vals := scheduleNextArgs.Register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		count := vals.Int("count")
		if count < 1 {
			return fmt.Errorf("--count must be at least 1 (got %d)", count)
		}

		from := time.Now().UTC()
		if v := vals.String("from"); v != "" {
			d, err := time.Parse(dateLayout, v)
			if err != nil {
				return fmt.Errorf("invalid --from %q: expected YYYY-MM-DD", v)
			}
			from = d
		}

		cron := vals.Cron("every")
		runs, err := schedule.NextRuns(cron, from, count)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", vals.String("every"), cron) //nolint:errcheck
		for _, r := range runs {
			fmt.Fprintln(out, r.Format(time.RFC3339)) //nolint:errcheck
		}
		return nil
	}
	return cmd
}

func printScheduleTable(w io.Writer, entries []schedule.Entry) {
	rows := [][]string{{"DAYS", "TIMESPAN", "CRON"}}
	for _, e := range entries {
		rows = append(rows, []string{strconv.Itoa(e.Days), e.Timespan, e.Cron})
	}
	printTable(w, rows)
}

// printTable writes rows as left-aligned columns separated by two spaces.
// The first row is the header.
func printTable(w io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(padRight(cell, widths[i]))
			b.WriteString("  ")
		}
		fmt.Fprintln(w, b.String()) //nolint:errcheck
	}
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

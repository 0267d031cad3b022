package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/shopfloor/pkg/model"
)

func newListCmd() *cobra.Command {
	var (
		sortBy string
		desc   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "List the task table. --sort accepts a column name or a table heading such as \"Time left\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			column, ok := model.ColumnFor(sortBy)
			if !ok {
				return fmt.Errorf("unknown sort column %q", sortBy)
			}

			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			records, err := c.Latest(ctx)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			model.SortRecords(records, column, desc)
			printTable(cmd.OutOrStdout(), records, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "Time", "Column to sort by")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	return cmd
}

const rowFormat = "%-42s  %-19s  %-14s  %-10s  %5s  %-9s  %s\n"

// printTable writes records in the scheduler's table layout. Running
// tasks show their countdown as of now.
func printTable(w io.Writer, records []model.Record, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	fmt.Fprintf(w, rowFormat, "TASK ID", "TIME", "MACHINE", "MATERIAL", "SPEED", "STATUS", "TIME LEFT")
	for _, r := range records {
		left := ""
		if r.Status.IsRunning() {
			left = fmt.Sprintf("%ds", r.RemainingAt(now))
		}
		fmt.Fprintf(w, rowFormat,
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Machine,
			r.Material,
			fmt.Sprint(r.Speed),
			string(r.Status.Kind),
			left,
		)
	}
}

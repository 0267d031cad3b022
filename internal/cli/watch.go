package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/shopfloor/pkg/model"
)

func newWatchCmd() *cobra.Command {
	var (
		count   int
		refresh time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the task table on every change",
		Long: "Print the task table whenever the scheduler broadcasts a change. With --refresh the " +
			"countdown of running tasks is also reprinted from their expected completion time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			var tick <-chan time.Time
			if refresh > 0 {
				ticker := time.NewTicker(refresh)
				defer ticker.Stop()
				tick = ticker.C
			}

			out := cmd.OutOrStdout()
			var current []model.Record
			seen := 0
			for {
				select {
				case records, ok := <-c.States():
					if !ok {
						return fmt.Errorf("watch: %w", c.Err())
					}
					current = records
					seen++
					fmt.Fprintf(out, "== %s  %d tasks\n", time.Now().Format("15:04:05"), len(records))
					printTable(out, current, time.Now())
					if count > 0 && seen >= count {
						return nil
					}
				case now := <-tick:
					if hasRunning(current) {
						fmt.Fprintf(out, "== %s  refresh\n", now.Format("15:04:05"))
						printTable(out, current, now)
					}
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many state messages (0 = run until interrupted)")
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "Reprint running countdowns at this interval (0 = off)")
	return cmd
}

func hasRunning(records []model.Record) bool {
	for _, r := range records {
		if r.Status.IsRunning() {
			return true
		}
	}
	return false
}

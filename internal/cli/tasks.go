package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/shopfloor/internal/client"
)

func newCreateCmd() *cobra.Command {
	var (
		machine  string
		material string
		speed    int
		duration int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long:  "Create a task on a machine. It starts at once when the machine is idle, otherwise it is queued.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := client.CreateParams{Machine: machine, Material: material, Speed: speed}
			if cmd.Flags().Changed("duration") {
				p.DurationSeconds = &duration
			}

			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			id, err := c.Create(ctx, p)
			if err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task created: %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&machine, "machine", "", "Machine name (required)")
	cmd.Flags().StringVar(&material, "material", "", "Material name (required)")
	cmd.Flags().IntVar(&speed, "speed", 0, "Cutting speed (required)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Processing time in seconds (default: the machine's expected time)")
	cmd.MarkFlagRequired("machine")
	cmd.MarkFlagRequired("material")
	cmd.MarkFlagRequired("speed")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var (
		machine  string
		material string
		speed    int
	)
	cmd := &cobra.Command{
		Use:   "update <task_id>",
		Short: "Edit a task",
		Long:  "Edit a task. Machine and material can only change while the task is queued.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := client.UpdateParams{TaskID: args[0]}
			if cmd.Flags().Changed("machine") {
				p.Machine = &machine
			}
			if cmd.Flags().Changed("material") {
				p.Material = &material
			}
			if cmd.Flags().Changed("speed") {
				p.Speed = &speed
			}
			if p.Machine == nil && p.Material == nil && p.Speed == nil {
				return fmt.Errorf("nothing to update: set --machine, --material or --speed")
			}

			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := c.Update(ctx, p); err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task updated: %s\n", p.TaskID)
			return nil
		},
	}
	cmd.Flags().StringVar(&machine, "machine", "", "New machine (queued tasks only)")
	cmd.Flags().StringVar(&material, "material", "", "New material (queued tasks only)")
	cmd.Flags().IntVar(&speed, "speed", 0, "New cutting speed")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <task_id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := c.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("delete task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task deleted: %s\n", args[0])
			return nil
		},
	}
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
)

func newResumeCmd(opts *options) *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "resume <project>",
		Short: "Print a saved project's continuation prompt",
		Long: `Prints the continuation prompt written with the project's latest
checkpoint. Paste it into a new session, or call the resume_project
command, to continue where the previous session stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openStore(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			name := args[0]
			if _, err := loadSnapshot(ctx, fs, name); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if history {
				cps, err := fs.Checkpoints(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to read checkpoints: %w", err)
				}
				renderCheckpoints(out, cps)
				return nil
			}

			prompt, err := fs.ContinuationPrompt(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to read continuation prompt: %w", err)
			}
			fmt.Fprintln(out, prompt)
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "list the project's checkpoints instead of the prompt")
	return cmd
}

func renderCheckpoints(w io.Writer, cps []*checkpoint.Checkpoint) {
	if len(cps) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no checkpoints yet"))
		return
	}
	for _, cp := range cps {
		kind := "manual"
		if cp.Auto {
			kind = "auto"
		}
		fmt.Fprintf(w, "#%-3d %s  %s  %s  %s\n",
			cp.Sequence,
			dimStyle.Render(cp.Timestamp.Format(time.RFC3339)),
			valueStyle.Render(cp.Phase),
			fmt.Sprintf("%d tasks, %d%%", cp.TasksCompleted, cp.OverallProgress),
			dimStyle.Render(kind))
	}
}

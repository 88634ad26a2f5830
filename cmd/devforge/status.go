package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/store"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// pendingTaskPreview is how many pending tasks status lists.
const pendingTaskPreview = 5

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status [project]",
		Short: "Show a saved project's workflow status",
		Long: `Reads the project's saved state from the output directory and prints
its phase, progress and next step. Without a project name, lists every
saved project. No server or AI credential is needed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openStore(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if len(args) == 0 {
				return listProjects(ctx, cmd.OutOrStdout(), fs)
			}
			snap, err := loadSnapshot(ctx, fs, args[0])
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func listProjects(ctx context.Context, w io.Writer, fs *store.FileStore) error {
	names, err := fs.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no projects in "+fs.Root()))
		return nil
	}
	for _, name := range names {
		snap, err := fs.LoadSnapshot(ctx, name)
		if err != nil {
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render(name), errorStyle.Render(err.Error()))
			continue
		}
		p := snap.Project
		fmt.Fprintf(w, "%s %s  %s\n", labelStyle.Render(name),
			valueStyle.Render(p.CurrentPhase.String()), progressBar(p.OverallProgress(), 10))
	}
	return nil
}

// openStore opens the project store without building the rest of the app.
func openStore(opts *options) (*store.FileStore, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return store.NewFileStore(cfg.Storage.OutputDir, logging.NewNop())
}

func loadSnapshot(ctx context.Context, fs *store.FileStore, name string) (*store.Snapshot, error) {
	if err := workflow.ValidateName(name); err != nil {
		return nil, err
	}
	snap, err := fs.LoadSnapshot(ctx, name)
	if workflow.IsNotFound(err) {
		return nil, fmt.Errorf("project %q has no saved state in %s", name, fs.Root())
	}
	return snap, err
}

func renderStatus(w io.Writer, snap *store.Snapshot) {
	p := snap.Project
	var b strings.Builder

	b.WriteString(headerStyle.Render("devforge · "+p.Name) + "\n\n")
	b.WriteString(row("Type", orDash(p.Type)) + "\n")
	b.WriteString(row("Phase", p.CurrentPhase.String()) + "\n")
	b.WriteString(row("Completed", orDash(joinPhases(p.CompletedPhases))) + "\n")
	b.WriteString(row("Progress", progressBar(p.OverallProgress(), 20)) + "\n")
	b.WriteString(row("Saved", snap.SavedAt.Format(time.RFC3339)) + "\n")

	if p.Progress != nil {
		b.WriteString(sectionStyle.Render("Tasks") + "\n")
		b.WriteString(row("Completed", fmt.Sprintf("%d / %d", p.Ledger.TasksCompleted, p.Progress.TotalTasks)) + "\n")
		b.WriteString(row("Since checkpoint", fmt.Sprintf("%d", p.Ledger.SinceCheckpoint())) + "\n")
		b.WriteString(row("Checkpoints", fmt.Sprintf("%d", p.Progress.CheckpointCount)) + "\n")
		if p.Progress.CurrentTaskID != "" {
			b.WriteString(row("Current task", p.Progress.CurrentTaskID) + "\n")
		}
		for _, t := range p.PendingTasks(pendingTaskPreview) {
			b.WriteString("  " + dimStyle.Render("○") + " " + t.ID + " " + dimStyle.Render(t.Title) + "\n")
		}
	}

	if len(p.Artifacts) > 0 {
		b.WriteString(sectionStyle.Render("Artifacts") + "\n")
		for _, kind := range artifactOrder {
			a, ok := p.Artifacts[kind]
			if !ok {
				continue
			}
			b.WriteString("  " + doneStyle.Render("✓") + " " + string(kind) +
				dimStyle.Render(fmt.Sprintf(" (%d)", a.Count)) + "\n")
		}
	}

	if len(p.Issues) > 0 {
		b.WriteString(sectionStyle.Render("Issues") + "\n")
		for _, issue := range p.Issues {
			b.WriteString("  " + warningStyle.Render("!") + " " + issue + "\n")
		}
	}

	b.WriteString(sectionStyle.Render("Next") + "\n")
	if p.CurrentPhase == workflow.PhaseComplete {
		b.WriteString("  " + doneStyle.Render("Project complete") + "\n")
	} else {
		b.WriteString("  " + p.CurrentPhase.NextStep() + "\n")
		if next := p.CurrentPhase.NextCommand(); next != "" {
			b.WriteString("  " + dimStyle.Render("command: ") + next + "\n")
		}
	}

	fmt.Fprint(w, b.String())
}

var artifactOrder = []workflow.ArtifactKind{
	workflow.ArtifactDecisionMatrix,
	workflow.ArtifactSpecKit,
	workflow.ArtifactPostman,
	workflow.ArtifactFrontendPrompt,
	workflow.ArtifactBDDTests,
	workflow.ArtifactUIBlueprint,
}

func joinPhases(phases []workflow.Phase) string {
	names := make([]string, len(phases))
	for i, ph := range phases {
		names[i] = ph.String()
	}
	return strings.Join(names, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

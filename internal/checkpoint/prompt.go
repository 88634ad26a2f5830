package checkpoint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const (
	promptIssueLimit = 10
	promptTaskLimit  = 5
)

// ContinuationPrompt renders the summary a new session needs to resume p.
// last may be nil when no checkpoint exists yet.
func ContinuationPrompt(p *workflow.Project, last *Checkpoint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Continuation Prompt: %s\n\n", p.Name)
	fmt.Fprintf(&b, "Resume the DevForge workflow for project %q (%s).\n", p.Name, p.Type)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n", p.Description)
	}

	b.WriteString("\n## Status\n")
	fmt.Fprintf(&b, "- Current phase: %s\n", p.CurrentPhase)
	fmt.Fprintf(&b, "- Completed phases: %s\n", joinPhases(p.CompletedPhases))

	total := 0
	if p.SpecKit != nil {
		total = len(p.SpecKit.Tasks)
	}
	fmt.Fprintf(&b, "- Progress: %d%% (%d of %d tasks completed)\n", p.OverallProgress(), p.Ledger.TasksCompleted, total)
	fmt.Fprintf(&b, "- Last completed task: %s\n", orNone(p.Ledger.LastTaskID))

	current := ""
	if p.Progress != nil {
		current = p.Progress.CurrentTaskID
	}
	fmt.Fprintf(&b, "- Current task: %s\n", orNone(current))
	fmt.Fprintf(&b, "- Tasks since last checkpoint: %d\n", p.Ledger.SinceCheckpoint())

	if last != nil {
		kind := "manual"
		if last.Auto {
			kind = "automatic"
		}
		fmt.Fprintf(&b, "- Last checkpoint: #%d (%s) at %s\n", last.Sequence, kind, last.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	} else {
		b.WriteString("- Last checkpoint: none\n")
	}

	b.WriteString("\n## Outstanding issues\n")
	issues := p.Issues
	if len(issues) > promptIssueLimit {
		issues = issues[len(issues)-promptIssueLimit:]
	}
	if len(issues) == 0 {
		b.WriteString("- none\n")
	}
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}

	b.WriteString("\n## Next step\n")
	fmt.Fprintf(&b, "%s\n", p.CurrentPhase.NextStep())
	if next := p.CurrentPhase.NextCommand(); next != "" {
		fmt.Fprintf(&b, "Next command: %s\n", next)
	}

	if pending := p.PendingTasks(promptTaskLimit); len(pending) > 0 {
		b.WriteString("\n## Remaining tasks\n")
		for _, t := range pending {
			fmt.Fprintf(&b, "- %s [%s] %s (%s, %.1fh)\n", t.ID, t.Priority, t.Title, t.Type, t.EstimatedHours)
		}
	}

	if len(p.Artifacts) > 0 {
		kinds := make([]string, 0, len(p.Artifacts))
		for kind := range p.Artifacts {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		fmt.Fprintf(&b, "\nArtifacts already generated (do not regenerate): %s\n", strings.Join(kinds, ", "))
	}

	return b.String()
}

func joinPhases(phases []workflow.Phase) string {
	if len(phases) == 0 {
		return "none"
	}
	parts := make([]string, len(phases))
	for i, p := range phases {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

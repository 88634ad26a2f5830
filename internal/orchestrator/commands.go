package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/blueprint"
	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
	"github.com/fyrsmithlabs/devforge/internal/generate"
	"github.com/fyrsmithlabs/devforge/internal/knowledge"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const (
	decisionMatrixPath = "docs/DECISION_MATRIX.md"
	frontendPromptPath = "docs/FRONTEND_PROMPT.md"
	continuationPath   = ".devforge/continuation-prompt.txt"
)

// StartProject registers a project and generates its decision matrix.
func (o *Orchestrator) StartProject(ctx context.Context, req StartProjectRequest) (*Report, error) {
	return o.run(ctx, CmdStartProject, req.Name, func(ctx context.Context) (*Report, error) {
		if err := workflow.ValidateName(req.Name); err != nil {
			return nil, err
		}
		requirements := nonBlank(req.Requirements)
		if len(requirements) == 0 {
			return nil, &workflow.InvalidInputError{Field: "requirements", Reason: "at least one requirement is required"}
		}

		unlock := o.registry.Lock(req.Name)
		defer unlock()

		if _, ok := o.registry.Get(req.Name); ok {
			return nil, &workflow.ConflictError{Project: req.Name}
		}
		// Only registered projects conflict; a saved but unloaded one is replaced.
		_, err := o.store.LoadSnapshot(ctx, req.Name)
		replaced := err == nil

		matrix, err := o.matrix.Generate(ctx, generate.MatrixRequest{
			Name:         req.Name,
			Type:         req.Type,
			Description:  req.Description,
			Requirements: requirements,
		})
		if err != nil {
			return nil, fmt.Errorf("generating decision matrix: %w", err)
		}

		p := workflow.NewProject(req.Name, req.Type, req.Description, requirements, matrix, o.now())
		text := generate.RenderMatrix(p.Name, matrix)
		paths, err := o.writeFiles(ctx, p.Name, []generate.File{{Path: decisionMatrixPath, Content: []byte(text)}})
		if err != nil {
			return nil, err
		}
		p.Artifacts.Attach(workflow.ArtifactDecisionMatrix, paths...)

		if err := o.store.SaveSnapshot(ctx, p, nil); err != nil {
			return nil, fmt.Errorf("saving project state: %w", err)
		}
		if err := o.registry.Insert(p); err != nil {
			return nil, err
		}
		o.setLastCheckpoint(p.Name, nil)
		o.publish(ctx, CmdStartProject, p, map[string]any{"questions": len(matrix.Questions), "replaced": replaced})

		header := fmt.Sprintf("Project '%s' started. Phase: %s\n", p.Name, p.CurrentPhase)
		if replaced {
			o.logger.Warn(ctx, "replaced saved project state")
			header += fmt.Sprintf("Note: replaced the saved state of '%s' on disk. It was not loaded; use %s to continue a saved project instead.\n",
				p.Name, CmdResumeProject)
		}

		return &Report{
			Phase:  p.CurrentPhase,
			Text:   header + "\n" + text,
			Files:  paths,
			Matrix: matrix,
		}, nil
	})
}

// ApproveArchitecture attaches the decision matrix answers and generates
// the spec-kit.
func (o *Orchestrator) ApproveArchitecture(ctx context.Context, name string, answers []workflow.Answer) (*Report, error) {
	return o.run(ctx, CmdApproveArchitecture, name, func(ctx context.Context) (*Report, error) {
		unlock := o.registry.Lock(name)
		defer unlock()

		p, err := o.lookup(ctx, name, workflow.NotStarted)
		if err != nil {
			return nil, err
		}
		if err := checkGates(CmdApproveArchitecture, p); err != nil {
			return nil, err
		}
		answers = answered(answers)
		if len(answers) == 0 {
			return nil, &workflow.InvalidInputError{Field: "decision_matrix_answers", Reason: "at least one answered question is required"}
		}

		now := o.now()
		kit, err := o.specKit.Generate(ctx, p, answers, now)
		if err != nil {
			return nil, fmt.Errorf("generating spec-kit: %w", err)
		}

		paths, err := o.writeFiles(ctx, name, generate.SpecKitFiles(name, kit))
		if err != nil {
			return nil, err
		}
		next := p.Clone()
		next.ApproveArchitecture(answers, kit, now, paths...)
		if err := o.commit(ctx, CmdApproveArchitecture, next, nil); err != nil {
			return nil, err
		}

		summary := generate.SummarizeTasks(kit.Tasks)
		var b strings.Builder
		fmt.Fprintf(&b, "Architecture approved for '%s'. Phase: %s\n\n", name, next.CurrentPhase)
		fmt.Fprintf(&b, "Spec-kit generated: %d tasks, %.1f estimated hours\n", summary.Total, summary.EstimatedHours)
		for _, typ := range summary.Types() {
			fmt.Fprintf(&b, "- %s: %d\n", typ, summary.ByType[typ])
		}
		writeFileList(&b, paths)
		fmt.Fprintf(&b, "\nNext step: %s\n", next.CurrentPhase.NextStep())
		fmt.Fprintf(&b, "A checkpoint is saved automatically every %d completed tasks.\n", o.threshold)

		return &Report{Phase: next.CurrentPhase, Text: b.String(), Files: paths}, nil
	})
}

// GenerateAPITests writes the Postman collection, its environments and
// the testing guide.
func (o *Orchestrator) GenerateAPITests(ctx context.Context, name string) (*Report, error) {
	return o.run(ctx, CmdGenerateAPITests, name, func(ctx context.Context) (*Report, error) {
		unlock := o.registry.Lock(name)
		defer unlock()

		p, err := o.lookup(ctx, name, workflow.NotStarted)
		if err != nil {
			return nil, err
		}
		if err := checkGates(CmdGenerateAPITests, p); err != nil {
			return nil, err
		}

		files, err := o.apiTests(p)
		if err != nil {
			return nil, fmt.Errorf("generating API tests: %w", err)
		}
		paths, err := o.writeFiles(ctx, name, files)
		if err != nil {
			return nil, err
		}
		next := p.Clone()
		next.RecordAPITests(o.now(), paths...)
		if err := o.commit(ctx, CmdGenerateAPITests, next, nil); err != nil {
			return nil, err
		}

		cmds := generate.Newman()
		var b strings.Builder
		fmt.Fprintf(&b, "API tests generated for '%s'. Phase: %s\n", name, next.CurrentPhase)
		writeFileList(&b, paths)
		fmt.Fprintf(&b, "\nRun them with Newman:\n  %s\n  %s\n", cmds.RunAll, cmds.RunWithReporter)
		fmt.Fprintf(&b, "\nNext step: %s\n", next.CurrentPhase.NextStep())
		return &Report{Phase: next.CurrentPhase, Text: b.String(), Files: paths}, nil
	})
}

// AskFrontendQuestions returns the frontend questionnaire. It changes no
// state.
func (o *Orchestrator) AskFrontendQuestions(ctx context.Context, name string) (*Report, error) {
	return o.run(ctx, CmdAskFrontendQuestions, name, func(ctx context.Context) (*Report, error) {
		p, err := o.lookup(ctx, name, notFound)
		if err != nil {
			return nil, err
		}
		return &Report{Phase: p.CurrentPhase, Text: generate.RenderFrontendQuestions(name)}, nil
	})
}

// GenerateFrontendPrompt renders the frontend builder prompt from the
// questionnaire answers.
func (o *Orchestrator) GenerateFrontendPrompt(ctx context.Context, name string, answers workflow.FrontendAnswers) (*Report, error) {
	return o.run(ctx, CmdGenerateFrontendPrompt, name, func(ctx context.Context) (*Report, error) {
		unlock := o.registry.Lock(name)
		defer unlock()

		p, err := o.lookup(ctx, name, workflow.NotStarted)
		if err != nil {
			return nil, err
		}
		if err := checkGates(CmdGenerateFrontendPrompt, p); err != nil {
			return nil, err
		}
		if err := generate.ValidateFrontendAnswers(answers); err != nil {
			return nil, err
		}

		prompt := generate.FrontendPrompt(p, answers)
		paths, err := o.writeFiles(ctx, name, []generate.File{{Path: frontendPromptPath, Content: []byte(prompt)}})
		if err != nil {
			return nil, err
		}
		next := p.Clone()
		next.RecordFrontendPrompt(o.now(), paths...)
		if err := o.commit(ctx, CmdGenerateFrontendPrompt, next, nil); err != nil {
			return nil, err
		}

		text := fmt.Sprintf("Frontend prompt generated for '%s'. Phase: %s\nSaved to %s\n\n%s\nNext step: %s\n",
			name, next.CurrentPhase, frontendPromptPath, prompt, next.CurrentPhase.NextStep())
		return &Report{Phase: next.CurrentPhase, Text: text, Files: paths}, nil
	})
}

// GenerateBDDTests writes the Gherkin features and step definitions.
func (o *Orchestrator) GenerateBDDTests(ctx context.Context, name string) (*Report, error) {
	return o.run(ctx, CmdGenerateBDDTests, name, func(ctx context.Context) (*Report, error) {
		unlock := o.registry.Lock(name)
		defer unlock()

		p, err := o.lookup(ctx, name, workflow.NotStarted)
		if err != nil {
			return nil, err
		}
		if err := checkGates(CmdGenerateBDDTests, p); err != nil {
			return nil, err
		}

		files, err := o.bddTests(p)
		if err != nil {
			return nil, fmt.Errorf("generating BDD tests: %w", err)
		}
		paths, err := o.writeFiles(ctx, name, files)
		if err != nil {
			return nil, err
		}
		next := p.Clone()
		next.RecordBDDTests(o.now(), paths...)
		if err := o.commit(ctx, CmdGenerateBDDTests, next, nil); err != nil {
			return nil, err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "BDD tests generated for '%s'. Phase: %s\n", name, next.CurrentPhase)
		writeFileList(&b, paths)
		b.WriteString("\nRun them with: npx cucumber-js\n")
		fmt.Fprintf(&b, "\nNext step: %s\n", next.CurrentPhase.NextStep())
		return &Report{Phase: next.CurrentPhase, Text: b.String(), Files: paths}, nil
	})
}

// CreateCheckpoint counts the reported tasks and writes a manual
// checkpoint.
func (o *Orchestrator) CreateCheckpoint(ctx context.Context, req CheckpointRequest) (*Report, error) {
	return o.run(ctx, CmdCreateCheckpoint, req.Name, func(ctx context.Context) (*Report, error) {
		unlock := o.registry.Lock(req.Name)
		defer unlock()

		p, err := o.lookup(ctx, req.Name, workflow.NotStarted)
		if err != nil {
			return nil, err
		}
		if err := checkGates(CmdCreateCheckpoint, p); err != nil {
			return nil, err
		}

		next := p.Clone()
		next.Ledger.RecordBatch(req.CompletedTaskIDs)
		cp, err := o.writer.Create(ctx, next, checkpoint.Request{
			CurrentTaskID: req.CurrentTaskID,
			Issues:        req.Issues,
		})
		if err != nil {
			return nil, err
		}
		if err := o.commit(ctx, CmdCreateCheckpoint, next, cp); err != nil {
			return nil, err
		}

		text := fmt.Sprintf("Checkpoint #%d saved for '%s' (%d%% complete, %d tasks completed).\nContinuation prompt saved to %s\n\n%s",
			cp.Sequence, req.Name, cp.OverallProgress, cp.TasksCompleted, continuationPath,
			checkpoint.ContinuationPrompt(next, cp))
		return &Report{
			Phase:      next.CurrentPhase,
			Text:       text,
			Files:      []string{continuationPath},
			Checkpoint: summarize(cp),
		}, nil
	})
}

// CompleteTask counts one completed task and writes an automatic checkpoint
// when the threshold is reached. If that checkpoint fails the task is not
// counted.
func (o *Orchestrator) CompleteTask(ctx context.Context, name, taskID string) (*Report, error) {
	return o.run(ctx, CmdCompleteTask, name, func(ctx context.Context) (*Report, error) {
		if strings.TrimSpace(taskID) == "" {
			return nil, &workflow.InvalidInputError{Field: "task_id", Reason: "must not be empty"}
		}

		unlock := o.registry.Lock(name)
		defer unlock()

		p, err := o.lookup(ctx, name, workflow.NotStarted)
		if err != nil {
			return nil, err
		}
		if err := checkGates(CmdCompleteTask, p); err != nil {
			return nil, err
		}

		next := p.Clone()
		since := next.Ledger.RecordCompletion(taskID)
		next.UpdatedAt = o.now()

		var cp *checkpoint.Checkpoint
		if next.Ledger.Due(o.threshold) {
			cp, err = o.writer.Create(ctx, next, checkpoint.Request{Auto: true})
			if err != nil {
				return nil, fmt.Errorf("automatic checkpoint failed, task %s not recorded: %w", taskID, err)
			}
		}
		if err := o.commit(ctx, CmdCompleteTask, next, cp); err != nil {
			return nil, err
		}
		o.logger.Trace(ctx, "task recorded",
			zap.String("task_id", taskID),
			zap.Int("since_checkpoint", since))

		var b strings.Builder
		fmt.Fprintf(&b, "Task %s completed for '%s'. Progress: %d%% (%d of %d tasks)\n",
			taskID, name, next.OverallProgress(), next.Ledger.TasksCompleted, len(next.SpecKit.Tasks))
		switch {
		case cp != nil:
			fmt.Fprintf(&b, "Automatic checkpoint #%d saved after %d tasks. Continuation prompt saved to %s\n",
				cp.Sequence, since, continuationPath)
		case since >= o.threshold-checkpointWarningMargin:
			fmt.Fprintf(&b, "Tasks since last checkpoint: %d/%d. A checkpoint will be saved in %d tasks.\n",
				since, o.threshold, o.threshold-since)
		default:
			fmt.Fprintf(&b, "Tasks since last checkpoint: %d/%d\n", since, o.threshold)
		}
		if pending := next.PendingTasks(1); len(pending) > 0 {
			fmt.Fprintf(&b, "Next task: %s %s\n", pending[0].ID, pending[0].Title)
		}
		return &Report{Phase: next.CurrentPhase, Text: b.String(), Checkpoint: summarize(cp)}, nil
	})
}

// Status reports the committed state of a project.
func (o *Orchestrator) Status(ctx context.Context, name string) (*Report, error) {
	return o.run(ctx, CmdGetWorkflowStatus, name, func(ctx context.Context) (*Report, error) {
		p, err := o.lookup(ctx, name, notFound)
		if err != nil {
			return nil, err
		}
		st := o.status(p)
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding status: %w", err)
		}
		return &Report{Phase: p.CurrentPhase, Text: string(data), Status: st}, nil
	})
}

func (o *Orchestrator) status(p *workflow.Project) *Status {
	st := &Status{
		ProjectName:          p.Name,
		ProjectType:          p.Type,
		CurrentPhase:         p.CurrentPhase,
		CompletedPhases:      append([]workflow.Phase(nil), p.CompletedPhases...),
		OverallProgress:      p.OverallProgress(),
		TasksCompleted:       p.Ledger.TasksCompleted,
		LastCheckpointTask:   p.Ledger.LastCheckpointTask,
		TasksSinceCheckpoint: p.Ledger.SinceCheckpoint(),
		CheckpointThreshold:  o.threshold,
		CheckpointNeeded:     p.Ledger.Due(o.threshold),
		Artifacts:            p.Artifacts.Clone(),
		Issues:               append([]string{}, p.Issues...),
		NextCommand:          p.CurrentPhase.NextCommand(),
		NextStep:             p.CurrentPhase.NextStep(),
	}
	if st.Artifacts == nil {
		st.Artifacts = workflow.ArtifactSet{}
	}
	if p.SpecKit != nil {
		st.TotalTasks = len(p.SpecKit.Tasks)
	}
	if p.Progress != nil {
		st.CheckpointCount = p.Progress.CheckpointCount
		st.LastCheckpointID = p.Progress.LastCheckpointID
		st.CurrentTaskID = p.Progress.CurrentTaskID
	}
	return st
}

// CheckKnowledgeBase looks for local documentation about a project. It has
// no precondition and always answers, possibly with "not found".
func (o *Orchestrator) CheckKnowledgeBase(ctx context.Context, req KnowledgeRequest) (*Report, error) {
	return o.run(ctx, CmdCheckKnowledgeBase, req.Name, func(ctx context.Context) (*Report, error) {
		if strings.TrimSpace(req.Name) == "" {
			return nil, &workflow.InvalidInputError{Field: "project_name", Reason: "must not be empty"}
		}
		res, err := o.knowledge.Check(ctx, req.Name, req.Description, req.Keywords)
		if err != nil {
			return nil, fmt.Errorf("checking knowledge base: %w", err)
		}
		return &Report{Text: knowledge.Render(req.Name, res), Knowledge: res}, nil
	})
}

// GenerateUIBlueprint builds an A2UI blueprint. It has no workflow
// precondition; when the project is registered the blueprint is recorded
// as an artifact.
func (o *Orchestrator) GenerateUIBlueprint(ctx context.Context, req BlueprintRequest) (*Report, error) {
	return o.run(ctx, CmdGenerateUIBlueprint, req.Name, func(ctx context.Context) (*Report, error) {
		if err := workflow.ValidateName(req.Name); err != nil {
			return nil, err
		}
		bp, err := o.blueprint.Generate(req.Name, blueprint.Platform(req.Platform), req.Screens)
		if err != nil {
			return nil, err
		}
		files, err := blueprint.Files(bp)
		if err != nil {
			return nil, err
		}

		unlock := o.registry.Lock(req.Name)
		defer unlock()

		paths, err := o.writeFiles(ctx, req.Name, files)
		if err != nil {
			return nil, err
		}
		var phase workflow.Phase
		if p, ok := o.registry.Get(req.Name); ok {
			next := p.Clone()
			next.RecordUIBlueprint(o.now(), paths...)
			if err := o.commit(ctx, CmdGenerateUIBlueprint, next, nil); err != nil {
				return nil, err
			}
			phase = next.CurrentPhase
		}

		var b strings.Builder
		fmt.Fprintf(&b, "UI blueprint generated for '%s' (%s, A2UI %s)\n\n", req.Name, bp.Platform, bp.Version)
		fmt.Fprintf(&b, "Screens: %d\nCatalog: %s\n", len(bp.Surfaces), strings.Join(bp.Catalog, ", "))
		writeFileList(&b, paths)
		if code, _ := blueprint.Code(bp); code != "" {
			fmt.Fprintf(&b, "\n%s", code)
		} else {
			b.WriteString("\nNo starter code for this platform; render the surfaces from ui/messages.jsonl.\n")
		}
		return &Report{Phase: phase, Text: b.String(), Files: paths, Blueprint: bp}, nil
	})
}

// ResumeProject loads a project from its last committed snapshot and
// returns its continuation prompt. A project that is already active is
// left as is.
func (o *Orchestrator) ResumeProject(ctx context.Context, name string) (*Report, error) {
	return o.run(ctx, CmdResumeProject, name, func(ctx context.Context) (*Report, error) {
		if err := workflow.ValidateName(name); err != nil {
			return nil, err
		}

		unlock := o.registry.Lock(name)
		defer unlock()

		if p, ok := o.registry.Get(name); ok {
			text := fmt.Sprintf("Project '%s' is already active.\n\n%s", name, checkpoint.ContinuationPrompt(p, o.lastCheckpoint(name)))
			return &Report{Phase: p.CurrentPhase, Text: text}, nil
		}

		snap, err := o.store.LoadSnapshot(ctx, name)
		if err != nil {
			return nil, err
		}
		if err := o.registry.Insert(snap.Project); err != nil {
			return nil, err
		}
		o.setLastCheckpoint(name, snap.LastCheckpoint)
		o.publish(ctx, CmdResumeProject, snap.Project, nil)

		text := fmt.Sprintf("Project '%s' resumed from %s.\n\n%s", name, snap.SavedAt.UTC().Format("2006-01-02 15:04:05 MST"),
			checkpoint.ContinuationPrompt(snap.Project, snap.LastCheckpoint))
		return &Report{Phase: snap.Project.CurrentPhase, Text: text}, nil
	})
}

// CompleteProject writes a final checkpoint and marks the workflow
// complete.
func (o *Orchestrator) CompleteProject(ctx context.Context, name string) (*Report, error) {
	return o.run(ctx, CmdCompleteProject, name, func(ctx context.Context) (*Report, error) {
		unlock := o.registry.Lock(name)
		defer unlock()

		p, err := o.lookup(ctx, name, workflow.NotStarted)
		if err != nil {
			return nil, err
		}
		if err := checkGates(CmdCompleteProject, p); err != nil {
			return nil, err
		}

		next := p.Clone()
		next.Complete(o.now())
		cp, err := o.writer.Create(ctx, next, checkpoint.Request{})
		if err != nil {
			return nil, err
		}
		if err := o.commit(ctx, CmdCompleteProject, next, cp); err != nil {
			return nil, err
		}

		kinds := make([]string, 0, len(next.Artifacts))
		for kind := range next.Artifacts {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)

		var b strings.Builder
		fmt.Fprintf(&b, "Project '%s' is complete.\n\n", name)
		fmt.Fprintf(&b, "Tasks completed: %d (%d%%)\n", next.Ledger.TasksCompleted, next.OverallProgress())
		fmt.Fprintf(&b, "Checkpoints: %d\n", next.Progress.CheckpointCount)
		fmt.Fprintf(&b, "Artifacts: %s\n", strings.Join(kinds, ", "))
		if len(next.Issues) > 0 {
			fmt.Fprintf(&b, "Recorded issues: %d\n", len(next.Issues))
		}
		fmt.Fprintf(&b, "\n%s\n", next.CurrentPhase.NextStep())
		return &Report{Phase: next.CurrentPhase, Text: b.String(), Checkpoint: summarize(cp)}, nil
	})
}

func writeFileList(b *strings.Builder, paths []string) {
	if len(paths) == 0 {
		return
	}
	b.WriteString("\nFiles:\n")
	for _, p := range paths {
		fmt.Fprintf(b, "- %s\n", p)
	}
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func answered(in []workflow.Answer) []workflow.Answer {
	out := make([]workflow.Answer, 0, len(in))
	for _, a := range in {
		if strings.TrimSpace(a.Answer) != "" {
			out = append(out, a)
		}
	}
	return out
}

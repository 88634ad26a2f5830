package dispatch

import (
	"context"

	"github.com/fyrsmithlabs/devforge/internal/orchestrator"
)

func table(wf Workflow) []Command {
	byName := func(fn func(context.Context, string) (*orchestrator.Report, error)) func(context.Context, ProjectInput) (*orchestrator.Report, error) {
		return func(ctx context.Context, in ProjectInput) (*orchestrator.Report, error) {
			return fn(ctx, in.ProjectName)
		}
	}

	return []Command{
		bind(orchestrator.CmdStartProject,
			"Start a new project and generate its architecture decision matrix.",
			func(ctx context.Context, in StartProjectInput) (*orchestrator.Report, error) {
				return wf.StartProject(ctx, orchestrator.StartProjectRequest{
					Name:         in.ProjectName,
					Type:         in.ProjectType,
					Description:  in.Description,
					Requirements: in.Requirements,
				})
			}),
		bind(orchestrator.CmdApproveArchitecture,
			"Approve the decision matrix answers and generate the spec-kit (constitution, specification, plan, tasks).",
			func(ctx context.Context, in ApproveArchitectureInput) (*orchestrator.Report, error) {
				return wf.ApproveArchitecture(ctx, in.ProjectName, in.DecisionMatrixAnswers)
			}),
		bind(orchestrator.CmdGenerateAPITests,
			"Generate a Postman collection, environments and Newman commands from the specification.",
			byName(wf.GenerateAPITests)),
		bind(orchestrator.CmdAskFrontendQuestions,
			"List the questions that shape the frontend prompt.",
			byName(wf.AskFrontendQuestions)),
		bind(orchestrator.CmdGenerateFrontendPrompt,
			"Generate a frontend builder prompt from the questionnaire answers.",
			func(ctx context.Context, in FrontendPromptInput) (*orchestrator.Report, error) {
				return wf.GenerateFrontendPrompt(ctx, in.ProjectName, in.FrontendAnswers)
			}),
		bind(orchestrator.CmdGenerateBDDTests,
			"Generate Gherkin features and step definitions from the user stories.",
			byName(wf.GenerateBDDTests)),
		bind(orchestrator.CmdCreateCheckpoint,
			"Save a checkpoint and a continuation prompt for the next session.",
			func(ctx context.Context, in CreateCheckpointInput) (*orchestrator.Report, error) {
				return wf.CreateCheckpoint(ctx, orchestrator.CheckpointRequest{
					Name:             in.ProjectName,
					CompletedTaskIDs: in.CompletedTaskIDs,
					CurrentTaskID:    in.CurrentTaskID,
					Issues:           in.IssuesEncountered,
				})
			}),
		bind(orchestrator.CmdCompleteTask,
			"Mark a task complete; saves a checkpoint automatically when one is due.",
			func(ctx context.Context, in CompleteTaskInput) (*orchestrator.Report, error) {
				return wf.CompleteTask(ctx, in.ProjectName, in.TaskID)
			}),
		bind(orchestrator.CmdGetWorkflowStatus,
			"Show the phase, progress and checkpoint state of a project.",
			byName(wf.Status)),
		bind(orchestrator.CmdCheckKnowledgeBase,
			"Search the knowledge base for documentation relevant to a project.",
			func(ctx context.Context, in KnowledgeBaseInput) (*orchestrator.Report, error) {
				return wf.CheckKnowledgeBase(ctx, orchestrator.KnowledgeRequest{
					Name:        in.ProjectName,
					Description: in.ProjectDescription,
					Keywords:    in.Keywords,
				})
			}),
		bind(orchestrator.CmdGenerateUIBlueprint,
			"Generate an A2UI blueprint and starter screen code.",
			func(ctx context.Context, in UIBlueprintInput) (*orchestrator.Report, error) {
				return wf.GenerateUIBlueprint(ctx, orchestrator.BlueprintRequest{
					Name:     in.ProjectName,
					Platform: in.Platform,
					Screens:  in.Screens,
				})
			}),
		bind(orchestrator.CmdResumeProject,
			"Load a project saved on disk into this server.",
			byName(wf.ResumeProject)),
		bind(orchestrator.CmdCompleteProject,
			"Finish a project that has passed every phase and save a final checkpoint.",
			byName(wf.CompleteProject)),
	}
}

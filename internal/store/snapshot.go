package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SnapshotVersion is the current state.json schema version.
const SnapshotVersion = 1

const (
	stateFile      = "state.json"
	checkpointFile = "checkpoints.jsonl"
	promptFile     = "continuation-prompt.txt"
	manifestFile   = "PROJECT.yaml"

	maxCheckpointLine = 4 << 20
)

// Snapshot is the committed state of one project.
type Snapshot struct {
	Version        int                    `json:"version"`
	Project        *workflow.Project      `json:"project"`
	LastCheckpoint *checkpoint.Checkpoint `json:"lastCheckpoint,omitempty"`
	SavedAt        time.Time              `json:"savedAt"`
}

type manifest struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Description     string   `yaml:"description,omitempty"`
	CurrentPhase    string   `yaml:"current_phase"`
	CompletedPhases []string `yaml:"completed_phases"`
	NextCommand     string   `yaml:"next_command,omitempty"`
	Progress        int      `yaml:"progress"`
	TotalTasks      int      `yaml:"total_tasks"`
	TasksCompleted  int      `yaml:"tasks_completed"`
	Checkpoints     int      `yaml:"checkpoints"`
	Artifacts       []string `yaml:"artifacts,omitempty"`
	UpdatedAt       string   `yaml:"updated_at"`
}

func newManifest(p *workflow.Project) manifest {
	m := manifest{
		Name:           p.Name,
		Type:           p.Type,
		Description:    p.Description,
		CurrentPhase:   p.CurrentPhase.String(),
		NextCommand:    p.CurrentPhase.NextCommand(),
		Progress:       p.OverallProgress(),
		TasksCompleted: p.Ledger.TasksCompleted,
		UpdatedAt:      p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, ph := range p.CompletedPhases {
		m.CompletedPhases = append(m.CompletedPhases, ph.String())
	}
	if p.Progress != nil {
		m.TotalTasks = p.Progress.TotalTasks
		m.Checkpoints = p.Progress.CheckpointCount
	}
	for kind := range p.Artifacts {
		m.Artifacts = append(m.Artifacts, string(kind))
	}
	sort.Strings(m.Artifacts)
	return m
}

// AppendCheckpoint appends cp to the project's checkpoint log.
//
// An appended entry only counts once a snapshot with a matching checkpoint
// count has been saved.
func (s *FileStore) AppendCheckpoint(ctx context.Context, project string, cp *checkpoint.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	return s.AppendLine(ctx, project, filepath.Join(stateDir, checkpointFile), data)
}

// SaveSnapshot writes the manifest, then state.json, then a copy of the
// continuation prompt. state.json is the commit point: a failure before it
// leaves the previous snapshot in force.
func (s *FileStore) SaveSnapshot(ctx context.Context, p *workflow.Project, last *checkpoint.Checkpoint) error {
	m, err := yaml.Marshal(newManifest(p))
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if _, err := s.WriteFile(ctx, p.Name, manifestFile, m); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	snap := Snapshot{
		Version:        SnapshotVersion,
		Project:        p,
		LastCheckpoint: last,
		SavedAt:        time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if _, err := s.WriteFile(ctx, p.Name, filepath.Join(stateDir, stateFile), data); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	// The prompt file is a copy for humans; ContinuationPrompt never reads it.
	prompt := checkpoint.ContinuationPrompt(p, last)
	if _, err := s.WriteFile(ctx, p.Name, filepath.Join(stateDir, promptFile), []byte(prompt)); err != nil {
		s.logger.Warn(logging.WithProject(ctx, p.Name), "failed to write continuation prompt copy", zap.Error(err))
	}

	s.logger.Debug(logging.WithProject(ctx, p.Name), "saved snapshot",
		zap.String("phase", p.CurrentPhase.String()))
	return nil
}

// LoadSnapshot reads the committed snapshot of a project.
func (s *FileStore) LoadSnapshot(ctx context.Context, name string) (*Snapshot, error) {
	data, err := s.ReadFile(ctx, name, filepath.Join(stateDir, stateFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &workflow.NotFoundError{Project: name}
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot for %s: %w", name, err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot for %s has unsupported version %d", name, snap.Version)
	}
	if snap.Project == nil || snap.Project.Name != name {
		return nil, fmt.Errorf("snapshot for %s is missing its project", name)
	}
	if snap.Project.Artifacts == nil {
		snap.Project.Artifacts = workflow.ArtifactSet{}
	}
	return &snap, nil
}

// Checkpoints replays the committed checkpoints of a project in sequence
// order. Entries appended after the last committed snapshot are ignored, and
// a sequence written more than once resolves to its last entry.
func (s *FileStore) Checkpoints(ctx context.Context, name string) ([]*checkpoint.Checkpoint, error) {
	snap, err := s.LoadSnapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	committed := 0
	if snap.Project.Progress != nil {
		committed = snap.Project.Progress.CheckpointCount
	}

	data, err := s.ReadFile(ctx, name, filepath.Join(stateDir, checkpointFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint log: %w", err)
	}

	bySeq := make(map[int]*checkpoint.Checkpoint)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxCheckpointLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var cp checkpoint.Checkpoint
		if err := json.Unmarshal(raw, &cp); err != nil {
			// A torn final write is expected after a crash.
			s.logger.Warn(logging.WithProject(ctx, name), "skipping unreadable checkpoint entry",
				zap.Int("line", line), zap.Error(err))
			continue
		}
		if cp.Sequence < 1 || cp.Sequence > committed {
			continue
		}
		bySeq[cp.Sequence] = &cp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning checkpoint log: %w", err)
	}

	out := make([]*checkpoint.Checkpoint, 0, len(bySeq))
	for _, cp := range bySeq {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// ContinuationPrompt rebuilds the prompt of the committed snapshot, so it
// never describes a transition whose state.json write failed.
func (s *FileStore) ContinuationPrompt(ctx context.Context, name string) (string, error) {
	snap, err := s.LoadSnapshot(ctx, name)
	if err != nil {
		return "", err
	}
	return checkpoint.ContinuationPrompt(snap.Project, snap.LastCheckpoint), nil
}

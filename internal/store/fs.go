package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
	"go.uber.org/zap"
)

const (
	stateDir  = ".devforge"
	dirPerm   = 0o755
	filePerm  = 0o644
	tmpSuffix = ".tmp"
)

// FileStore persists projects and their artifacts below a root directory.
type FileStore struct {
	root   string
	logger *logging.Logger
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, logger *logging.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileStore{root: abs, logger: logger}, nil
}

// Root returns the absolute output directory.
func (s *FileStore) Root() string {
	return s.root
}

// ProjectDir returns the directory of a project.
func (s *FileStore) ProjectDir(project string) string {
	return filepath.Join(s.root, project)
}

// resolve joins rel onto the project directory and rejects anything that
// would land outside it.
func (s *FileStore) resolve(project, rel string) (string, error) {
	if err := workflow.ValidateName(project); err != nil {
		return "", err
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative", rel)
	}
	base := s.ProjectDir(project)
	full := filepath.Join(base, filepath.Clean(rel))
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project directory", rel)
	}
	return full, nil
}

// WriteFile atomically writes data to rel inside the project directory and
// returns the path relative to the output root.
func (s *FileStore) WriteFile(ctx context.Context, project, rel string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(project, rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", rel, err)
	}
	if err := writeFileAtomic(full, data, filePerm); err != nil {
		return "", err
	}
	s.logger.Debug(logging.WithProject(ctx, project), "wrote file", zap.String("path", rel), zap.Int("bytes", len(data)))
	return filepath.Join(project, filepath.Clean(rel)), nil
}

// ReadFile reads rel from the project directory.
func (s *FileStore) ReadFile(ctx context.Context, project, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(project, rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// AppendLine appends one newline-terminated record to rel and syncs it.
func (s *FileStore) AppendLine(ctx context.Context, project, rel string, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(project, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("opening %s: %w", rel, err)
	}
	record := append(append([]byte(nil), line...), '\n')
	if _, err := f.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", rel, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", rel, err)
	}
	return f.Close()
}

// ListProjects returns the names of directories that hold a snapshot.
func (s *FileStore) ListProjects(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || workflow.ValidateName(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), stateDir, stateFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// writeFileAtomic writes to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + tmpSuffix

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

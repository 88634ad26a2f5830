package store

import (
	"sort"
	"sync"

	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// Registry maps project names to their current committed state.
//
// Projects handed out by Get must be treated as read-only; callers mutate a
// Clone and Put it back while holding the project lock.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*workflow.Project
	locks    map[string]*sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		projects: make(map[string]*workflow.Project),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-project lock and returns its release function.
// The name need not be registered.
func (r *Registry) Lock(name string) func() {
	r.mu.Lock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the committed project for name.
func (r *Registry) Get(name string) (*workflow.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[name]
	return p, ok
}

// Insert registers a new project, failing if the name is already active.
func (r *Registry) Insert(p *workflow.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.Name]; ok {
		return &workflow.ConflictError{Project: p.Name}
	}
	r.projects[p.Name] = p
	return nil
}

// Put replaces the committed state of a project.
func (r *Registry) Put(p *workflow.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.Name] = p
}

// Names returns the registered project names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.projects))
	for name := range r.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

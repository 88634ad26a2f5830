package workflow

import "time"

// ArtifactKind names a generated artifact.
type ArtifactKind string

const (
	ArtifactDecisionMatrix ArtifactKind = "decision_matrix"
	ArtifactSpecKit        ArtifactKind = "spec_kit"
	ArtifactPostman        ArtifactKind = "postman"
	ArtifactFrontendPrompt ArtifactKind = "frontend_prompt"
	ArtifactBDDTests       ArtifactKind = "bdd_tests"
	ArtifactUIBlueprint    ArtifactKind = "ui_blueprint"
)

// Artifact records that an artifact was generated and where it was written.
type Artifact struct {
	GeneratedAt     time.Time `json:"generatedAt"`
	LastGeneratedAt time.Time `json:"lastGeneratedAt"`
	Count           int       `json:"count"`
	Paths           []string  `json:"paths,omitempty"`
}

// ArtifactSet maps artifact kinds to their records. Entries are never removed.
type ArtifactSet map[ArtifactKind]Artifact

// Has reports whether kind has been generated.
func (s ArtifactSet) Has(kind ArtifactKind) bool {
	_, ok := s[kind]
	return ok
}

// Mark records a generation of kind at time at. Paths replace the previous
// set; GeneratedAt keeps the first generation time.
func (s *ArtifactSet) Mark(kind ArtifactKind, at time.Time, paths ...string) {
	if *s == nil {
		*s = make(ArtifactSet)
	}
	a, ok := (*s)[kind]
	if !ok {
		a.GeneratedAt = at
	}
	a.LastGeneratedAt = at
	a.Count++
	if len(paths) > 0 {
		a.Paths = append([]string(nil), paths...)
	}
	(*s)[kind] = a
}

// Attach replaces the paths of an artifact that has already been generated.
// It reports false when kind is absent.
func (s ArtifactSet) Attach(kind ArtifactKind, paths ...string) bool {
	a, ok := s[kind]
	if !ok {
		return false
	}
	a.Paths = append([]string(nil), paths...)
	s[kind] = a
	return true
}

// Clone returns a deep copy.
func (s ArtifactSet) Clone() ArtifactSet {
	if s == nil {
		return nil
	}
	out := make(ArtifactSet, len(s))
	for k, v := range s {
		v.Paths = append([]string(nil), v.Paths...)
		out[k] = v
	}
	return out
}

package secrets

import (
	"sort"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	// Scrub redacts secrets from the content.
	Scrub(content string) *Result

	// Check detects secrets without redacting.
	Check(content string) *Result

	// IsEnabled returns whether scrubbing is enabled.
	IsEnabled() bool
}

// Result contains the scrubbing result. Findings never carry the match.
type Result struct {
	Scrubbed string
	ByRule   map[string]int
	Total    int
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return r.Total > 0
}

type scrubber struct {
	config *Config
}

type redaction struct {
	start, end int
}

// New creates a Scrubber. A nil config means DefaultConfig().
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &scrubber{config: cfg}, nil
}

// MustNew creates a Scrubber, panicking on error.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// ScrubAll scrubs each string and returns the redacted copies.
func ScrubAll(s Scrubber, items []string) []string {
	if len(items) == 0 {
		return items
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = s.Scrub(item).Scrubbed
	}
	return out
}

func (s *scrubber) Scrub(content string) *Result {
	result := &Result{Scrubbed: content, ByRule: make(map[string]int)}
	if !s.config.Enabled {
		return result
	}

	var redactions []redaction
	for _, rule := range s.config.compiledRules {
		if !rule.applies(content) {
			continue
		}
		for _, match := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.isAllowed(content[match[0]:match[1]]) {
				continue
			}
			result.ByRule[rule.ID]++
			result.Total++
			redactions = append(redactions, redaction{start: match[0], end: match[1]})
		}
	}
	if len(redactions) == 0 {
		return result
	}

	// Merge overlaps, then replace from the end so earlier offsets stay valid.
	sort.Slice(redactions, func(i, j int) bool { return redactions[i].start < redactions[j].start })
	merged := mergeRedactions(redactions)
	scrubbed := content
	for i := len(merged) - 1; i >= 0; i-- {
		r := merged[i]
		scrubbed = scrubbed[:r.start] + s.config.RedactionString + scrubbed[r.end:]
	}
	result.Scrubbed = scrubbed
	return result
}

func (s *scrubber) Check(content string) *Result {
	result := s.Scrub(content)
	result.Scrubbed = content
	return result
}

func (s *scrubber) IsEnabled() bool {
	return s.config.Enabled
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *scrubber) isAllowed(match string) bool {
	for _, pattern := range s.config.compiledAllowList {
		if pattern.MatchString(match) {
			return true
		}
	}
	return false
}

// mergeRedactions merges overlapping or adjacent ranges sorted by start.
func mergeRedactions(redactions []redaction) []redaction {
	merged := []redaction{redactions[0]}
	for _, curr := range redactions[1:] {
		last := &merged[len(merged)-1]
		if curr.start <= last.end {
			if curr.end > last.end {
				last.end = curr.end
			}
			continue
		}
		merged = append(merged, curr)
	}
	return merged
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (n NoopScrubber) Check(content string) *Result { return n.Scrub(content) }

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)

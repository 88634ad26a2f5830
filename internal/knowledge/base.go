package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/config"
	"github.com/fyrsmithlabs/devforge/internal/ignore"
	"github.com/fyrsmithlabs/devforge/internal/logging"
)

const (
	collectionName = "devforge-knowledge"
	maxChunkChars  = 1200
	excerptChars   = 240

	// Hits below this similarity only count when they contain a keyword.
	minSimilarity = 0.35
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/devforge/internal/knowledge")

// sourceExtensions are the file types indexed.
var sourceExtensions = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// Match is one source chunk relevant to a query.
type Match struct {
	Source     string  `json:"source"`
	Excerpt    string  `json:"excerpt"`
	Similarity float32 `json:"similarity"`
}

// Result is the answer to a knowledge-base check.
type Result struct {
	Enabled     bool     `json:"enabled"`
	Found       bool     `json:"found"`
	Keywords    []string `json:"keywords"`
	Matches     []Match  `json:"matches,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Base is a searchable index of local documentation. The zero value is not
// usable; a disabled Base comes from New with Enabled false.
type Base struct {
	enabled    bool
	sourcesDir string
	maxResults int
	logger     *logging.Logger

	mu         sync.RWMutex
	db         *chromem.DB
	embed      chromem.EmbeddingFunc
	collection *chromem.Collection
	documents  int
}

// New creates a knowledge base. When cfg.Enabled is false the returned Base
// answers every check with a not-configured result. embed may be nil, in
// which case the embedder named in cfg is used.
func New(cfg config.KnowledgeConfig, embed chromem.EmbeddingFunc, logger *logging.Logger) (*Base, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Base{
		enabled:    cfg.Enabled,
		sourcesDir: cfg.SourcesDir,
		maxResults: cfg.MaxResults,
		logger:     logger.Named("knowledge"),
	}
	if b.maxResults <= 0 {
		b.maxResults = 3
	}
	if !cfg.Enabled {
		return b, nil
	}

	info, err := os.Stat(cfg.SourcesDir)
	if err != nil {
		return nil, fmt.Errorf("knowledge sources: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge sources %s is not a directory", cfg.SourcesDir)
	}

	if embed == nil {
		embed, err = EmbeddingFor(cfg.Embedder)
		if err != nil {
			return nil, err
		}
	}
	b.embed = embed

	if cfg.Path == "" {
		b.db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", cfg.Path, err)
		}
		b.db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening knowledge index: %w", err)
		}
	}
	return b, nil
}

// Enabled reports whether the knowledge base is configured.
func (b *Base) Enabled() bool {
	return b.enabled
}

// Documents returns the number of indexed chunks.
func (b *Base) Documents() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.documents
}

// Index rebuilds the collection from the sources directory and returns the
// number of chunks indexed.
func (b *Base) Index(ctx context.Context) (int, error) {
	if !b.enabled {
		return 0, nil
	}
	ctx, span := tracer.Start(ctx, "knowledge.Index")
	defer span.End()

	docs, err := b.readSources()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db.GetCollection(collectionName, b.embed) != nil {
		if err := b.db.DeleteCollection(collectionName); err != nil {
			return 0, fmt.Errorf("dropping knowledge collection: %w", err)
		}
	}
	col, err := b.db.GetOrCreateCollection(collectionName, nil, b.embed)
	if err != nil {
		return 0, fmt.Errorf("creating knowledge collection: %w", err)
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, fmt.Errorf("indexing knowledge sources: %w", err)
		}
	}
	b.collection = col
	b.documents = len(docs)

	span.SetAttributes(attribute.Int("documents", len(docs)))
	b.logger.Info(ctx, "indexed knowledge sources",
		zap.String("dir", b.sourcesDir),
		zap.Int("chunks", len(docs)))
	return len(docs), nil
}

// readSources chunks every source file that is not hidden and not excluded
// by an ignore file in the sources directory.
func (b *Base) readSources() ([]chromem.Document, error) {
	rules, err := ignore.Load(b.sourcesDir, ignore.DefaultFiles...)
	if err != nil {
		return nil, fmt.Errorf("reading ignore files: %w", err)
	}

	var docs []chromem.Document
	err = filepath.WalkDir(b.sourcesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == b.sourcesDir {
			return nil
		}
		rel, err := filepath.Rel(b.sourcesDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || rules.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSource(path) || rules.Match(rel, false) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for i, chunk := range chunk(string(data)) {
			docs = append(docs, chromem.Document{
				ID:       rel + "#" + strconv.Itoa(i),
				Content:  chunk,
				Metadata: map[string]string{"source": rel},
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading knowledge sources: %w", err)
	}
	return docs, nil
}

func isSource(path string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(path))]
}

// chunk splits text on blank lines and packs paragraphs into chunks of at
// most maxChunkChars. A single longer paragraph becomes its own chunk.
func chunk(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > maxChunkChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return out
}

// Check looks for documentation relevant to a project. keywords override
// the ones extracted from description. A disabled base returns a
// not-configured result rather than an error.
func (b *Base) Check(ctx context.Context, projectName, description string, keywords []string) (*Result, error) {
	if len(keywords) == 0 {
		keywords = ExtractKeywords(description)
	}
	res := &Result{Enabled: b.enabled, Keywords: keywords}
	if !b.enabled {
		res.Suggestions = []string{
			"Enable the knowledge base with knowledge.enabled and knowledge.sources_dir",
			"Add technical specifications, API docs or design documents as markdown files",
		}
		return res, nil
	}

	ctx, span := tracer.Start(ctx, "knowledge.Check")
	defer span.End()
	span.SetAttributes(attribute.String("project", projectName), attribute.StringSlice("keywords", keywords))

	b.mu.RLock()
	col := b.collection
	b.mu.RUnlock()
	if col == nil {
		if _, err := b.Index(ctx); err != nil {
			return nil, err
		}
		b.mu.RLock()
		col = b.collection
		b.mu.RUnlock()
	}

	query := strings.TrimSpace(projectName + " " + description + " " + strings.Join(keywords, " "))
	n := min(b.maxResults*3, col.Count())
	if n > 0 && query != "" {
		hits, err := col.Query(ctx, query, n, nil, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("querying knowledge base: %w", err)
		}
		res.Matches = selectMatches(hits, keywords, b.maxResults)
	}
	res.Found = len(res.Matches) > 0
	if !res.Found {
		res.Suggestions = []string{
			fmt.Sprintf("Add documentation about %s to %s", projectName, b.sourcesDir),
			"Add technical specifications, API docs or design documents as sources",
		}
	}

	span.SetAttributes(attribute.Bool("found", res.Found), attribute.Int("matches", len(res.Matches)))
	b.logger.Debug(logging.WithProject(ctx, projectName), "checked knowledge base",
		zap.Strings("keywords", keywords),
		zap.Int("matches", len(res.Matches)))
	return res, nil
}

// selectMatches keeps hits that are similar enough or mention a keyword,
// one per source, best first.
func selectMatches(hits []chromem.Result, keywords []string, limit int) []Match {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	var out []Match
	seen := make(map[string]bool)
	for _, h := range hits {
		source := h.Metadata["source"]
		if seen[source] {
			continue
		}
		if h.Similarity < minSimilarity && !mentionsAny(h.Content, keywords) {
			continue
		}
		seen[source] = true
		out = append(out, Match{Source: source, Excerpt: excerpt(h.Content), Similarity: h.Similarity})
		if len(out) == limit {
			break
		}
	}
	return out
}

func mentionsAny(content string, keywords []string) bool {
	lower := strings.ToLower(content)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= excerptChars {
		return s
	}
	return string(r[:excerptChars]) + "..."
}

// Render formats a result for the user.
func Render(projectName string, r *Result) string {
	var b strings.Builder
	switch {
	case !r.Enabled:
		b.WriteString("Knowledge base is not configured.\n\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\nFalling back to AI-generated specs. Call start_project to continue.\n")
	case r.Found:
		fmt.Fprintf(&b, "Knowledge base found for %s (%d matching sources)\n\n", projectName, len(r.Matches))
		fmt.Fprintf(&b, "Keywords: %s\n\n", strings.Join(r.Keywords, ", "))
		for _, m := range r.Matches {
			fmt.Fprintf(&b, "- %s (similarity %.2f)\n  %s\n", m.Source, m.Similarity, m.Excerpt)
		}
		b.WriteString("\nNext step: call start_project and include the relevant documentation in the requirements.\n")
	default:
		fmt.Fprintf(&b, "No knowledge base entries found for %s.\n\n", projectName)
		fmt.Fprintf(&b, "Keywords searched: %s\n\n", strings.Join(r.Keywords, ", "))
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\nFalling back to AI-generated specs. Call start_project to continue.\n")
	}
	return b.String()
}

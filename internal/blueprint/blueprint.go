package blueprint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// Version is the A2UI protocol version emitted.
const Version = "0.8"

const generatorName = "devforge a2ui generator"

// defaultComponents is used for screens that name no components.
var defaultComponents = []string{"Container", "Text", "Button"}

// Screen is one requested screen.
type Screen struct {
	Name             string   `json:"name" jsonschema:"screen name, e.g. Home"`
	Route            string   `json:"route,omitempty" jsonschema:"route path; defaults to /<name>"`
	Description      string   `json:"description,omitempty" jsonschema:"what the screen is for"`
	Components       []string `json:"components,omitempty" jsonschema:"widget names from the A2UI catalog, e.g. Text, Button, TextField"`
	DataRequirements []string `json:"dataRequirements,omitempty" jsonschema:"data the screen binds to, e.g. todo list or current user"`
}

// ComponentSpec is the body of a component, keyed by widget name in
// Component.
type ComponentSpec struct {
	Value       string         `json:"value,omitempty"`
	Children    []string       `json:"children,omitempty"`
	Style       map[string]any `json:"style,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
	DataBinding string         `json:"dataBinding,omitempty"`
}

// Component is an addressable widget instance. Component holds exactly one
// entry.
type Component struct {
	ID        string                   `json:"id"`
	Component map[string]ComponentSpec `json:"component"`
}

// Widget returns the widget name and spec of c.
func (c Component) Widget() (string, ComponentSpec) {
	for name, spec := range c.Component {
		return name, spec
	}
	return "", ComponentSpec{}
}

// Surface is one rendered screen.
type Surface struct {
	SurfaceID  string         `json:"surfaceId"`
	Name       string         `json:"name"`
	Components []Component    `json:"components"`
	DataModel  map[string]any `json:"dataModel,omitempty"`
}

// Metadata describes how a blueprint was produced.
type Metadata struct {
	ProjectName string    `json:"projectName"`
	GeneratedAt time.Time `json:"generatedAt"`
	Generator   string    `json:"generator"`
}

// Blueprint is a complete A2UI document.
type Blueprint struct {
	Version  string    `json:"version"`
	Platform Platform  `json:"platform"`
	Surfaces []Surface `json:"surfaces"`
	// Catalog lists the widget names used, in first-seen order.
	Catalog  []string `json:"catalog"`
	Metadata Metadata `json:"metadata"`
}

// MessageType is the kind of a streamed A2UI message.
type MessageType string

const (
	MessageBeginRendering  MessageType = "beginRendering"
	MessageSurfaceUpdate   MessageType = "surfaceUpdate"
	MessageDataModelUpdate MessageType = "dataModelUpdate"
	MessageDeleteSurface   MessageType = "deleteSurface"
)

// Message is one line of the JSONL stream.
type Message struct {
	Type       MessageType    `json:"type"`
	SurfaceID  string         `json:"surfaceId"`
	Components []Component    `json:"components,omitempty"`
	DataModel  map[string]any `json:"dataModel,omitempty"`
}

// Generator builds blueprints from a catalog.
type Generator struct {
	catalog Catalog
	now     func() time.Time
}

// NewGenerator creates a Generator. A nil catalog uses DefaultCatalog.
func NewGenerator(catalog Catalog, now func() time.Time) *Generator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{catalog: catalog, now: now}
}

// Catalog returns the generator's widget catalog.
func (g *Generator) Catalog() Catalog {
	return g.catalog
}

// Generate builds the blueprint for screens. Every screen gets an AppBar
// header and a Column wrapping the header and the requested widgets.
func (g *Generator) Generate(projectName string, platform Platform, screens []Screen) (*Blueprint, error) {
	if _, err := ParsePlatform(string(platform)); err != nil {
		return nil, &workflow.InvalidInputError{Field: "platform", Reason: err.Error()}
	}
	if len(screens) == 0 {
		return nil, &workflow.InvalidInputError{Field: "screens", Reason: "at least one screen is required"}
	}

	b := &builder{catalog: g.catalog, seen: make(map[string]bool)}
	bp := &Blueprint{
		Version:  Version,
		Platform: platform,
		Metadata: Metadata{ProjectName: projectName, GeneratedAt: g.now().UTC(), Generator: generatorName},
	}
	routes := make(map[string]bool)
	for i, s := range screens {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return nil, &workflow.InvalidInputError{Field: fmt.Sprintf("screens[%d].name", i), Reason: "must not be empty"}
		}
		if s.Route == "" {
			s.Route = "/" + strings.Join(strings.Fields(strings.ToLower(s.Name)), "-")
		}
		if routes[s.Route] {
			return nil, &workflow.InvalidInputError{Field: fmt.Sprintf("screens[%d].route", i), Reason: fmt.Sprintf("duplicate route %q", s.Route)}
		}
		routes[s.Route] = true
		if len(s.Components) == 0 {
			s.Components = defaultComponents
		}
		bp.Surfaces = append(bp.Surfaces, b.surface(s))
	}
	bp.Catalog = b.order
	return bp, nil
}

type builder struct {
	catalog Catalog
	counter int
	seen    map[string]bool
	order   []string
}

func (b *builder) id(prefix string) string {
	b.counter++
	return fmt.Sprintf("%s_%d", prefix, b.counter)
}

func (b *builder) use(name string) {
	if !b.seen[name] {
		b.seen[name] = true
		b.order = append(b.order, name)
	}
}

func (b *builder) surface(s Screen) Surface {
	var components []Component

	headerID := b.id("header")
	b.use("AppBar")
	components = append(components, Component{
		ID:        headerID,
		Component: map[string]ComponentSpec{"AppBar": {Value: s.Name, Style: map[string]any{"backgroundColor": "primary"}}},
	})

	children := []string{headerID}
	for _, name := range s.Components {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		w, _ := b.catalog.Lookup(name)
		b.use(w.Name)
		id := b.id(strings.ToLower(w.Name))
		children = append(children, id)
		components = append(components, Component{
			ID:        id,
			Component: map[string]ComponentSpec{w.Name: {Props: copyMap(w.DefaultProps), Style: copyMap(w.DefaultStyle)}},
		})
	}

	b.use("Column")
	components = append(components, Component{
		ID:        b.id("container"),
		Component: map[string]ComponentSpec{"Column": {Children: children, Style: map[string]any{"padding": 16}}},
	})

	return Surface{
		SurfaceID:  surfaceID(s.Route),
		Name:       s.Name,
		Components: components,
		DataModel:  dataModel(s.DataRequirements),
	}
}

func surfaceID(route string) string {
	id := strings.ReplaceAll(strings.Trim(route, "/"), "/", "_")
	if id == "" {
		return "root"
	}
	return id
}

// dataModel seeds a model entry per requirement: lists start empty, users
// get an empty record, anything else starts null.
func dataModel(requirements []string) map[string]any {
	if len(requirements) == 0 {
		return nil
	}
	m := make(map[string]any, len(requirements))
	for _, r := range requirements {
		lower := strings.ToLower(r)
		switch {
		case strings.Contains(lower, "list"):
			m[r] = []any{}
		case strings.Contains(lower, "user"):
			m[r] = map[string]any{"id": "", "name": "", "email": ""}
		default:
			m[r] = nil
		}
	}
	return m
}

func copyMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Messages returns the streaming form of bp: beginRendering and
// surfaceUpdate per surface, plus dataModelUpdate when the surface has data.
func Messages(bp *Blueprint) []Message {
	var msgs []Message
	for _, s := range bp.Surfaces {
		msgs = append(msgs,
			Message{Type: MessageBeginRendering, SurfaceID: s.SurfaceID},
			Message{Type: MessageSurfaceUpdate, SurfaceID: s.SurfaceID, Components: s.Components},
		)
		if len(s.DataModel) > 0 {
			msgs = append(msgs, Message{Type: MessageDataModelUpdate, SurfaceID: s.SurfaceID, DataModel: s.DataModel})
		}
	}
	return msgs
}

// JSONL encodes Messages(bp) one per line.
func JSONL(bp *Blueprint) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range Messages(bp) {
		if err := enc.Encode(m); err != nil {
			return nil, fmt.Errorf("encoding %s message: %w", m.Type, err)
		}
	}
	return buf.Bytes(), nil
}

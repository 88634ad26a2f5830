package blueprint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devforge/internal/generate"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	return NewGenerator(nil, func() time.Time { return fixedNow })
}

func TestGenerate_CatalogIsRequestedPlusWrappers(t *testing.T) {
	g := newTestGenerator()
	bp, err := g.Generate("todo-app", PlatformReact, []Screen{
		{Name: "Home", Route: "/home", Components: []string{"Container", "Text", "Button"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AppBar", "Container", "Text", "Button", "Column"}, bp.Catalog)
	assert.Equal(t, Version, bp.Version)
	assert.Equal(t, "todo-app", bp.Metadata.ProjectName)
	assert.Equal(t, fixedNow, bp.Metadata.GeneratedAt)

	require.Len(t, bp.Surfaces, 1)
	s := bp.Surfaces[0]
	assert.Equal(t, "home", s.SurfaceID)
	require.Len(t, s.Components, 5)

	header, spec := s.Components[0].Widget()
	assert.Equal(t, "AppBar", header)
	assert.Equal(t, "Home", spec.Value)

	root, spec := s.Components[4].Widget()
	assert.Equal(t, "Column", root)
	assert.Equal(t, []string{"header_1", "container_2", "text_3", "button_4"}, spec.Children)
	assert.Equal(t, "container_5", s.Components[4].ID)
}

func TestGenerate_UnknownWidgetsAreCustom(t *testing.T) {
	g := newTestGenerator()
	bp, err := g.Generate("todo-app", PlatformFlutter, []Screen{
		{Name: "Board", Components: []string{"KanbanBoard", "Text", "KanbanBoard"}},
		{Name: "Settings", Components: []string{"Switch", "Text"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AppBar", "KanbanBoard", "Text", "Column", "Switch"}, bp.Catalog)

	w, known := g.Catalog().Lookup("KanbanBoard")
	assert.False(t, known)
	assert.Equal(t, CategoryCustom, w.Category)

	name, _ := bp.Surfaces[0].Components[1].Widget()
	assert.Equal(t, "KanbanBoard", name)
	assert.Equal(t, "board", bp.Surfaces[0].SurfaceID)
}

func TestGenerate_Defaults(t *testing.T) {
	g := newTestGenerator()
	bp, err := g.Generate("todo-app", PlatformConsole, []Screen{{Name: "Sign In"}})
	require.NoError(t, err)
	assert.Equal(t, "sign-in", bp.Surfaces[0].SurfaceID)
	assert.Equal(t, []string{"AppBar", "Container", "Text", "Button", "Column"}, bp.Catalog)
}

func TestGenerate_Validation(t *testing.T) {
	g := newTestGenerator()
	tests := []struct {
		name     string
		platform Platform
		screens  []Screen
		field    string
	}{
		{"unknown platform", Platform("swing"), []Screen{{Name: "Home"}}, "platform"},
		{"no screens", PlatformReact, nil, "screens"},
		{"blank name", PlatformReact, []Screen{{Name: "  "}}, "screens[0].name"},
		{"duplicate route", PlatformReact, []Screen{{Name: "Home"}, {Name: "home"}}, "screens[1].route"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate("x", tt.platform, tt.screens)
			var invalid *workflow.InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}

func TestMessagesAndJSONL(t *testing.T) {
	g := newTestGenerator()
	bp, err := g.Generate("todo-app", PlatformWeb, []Screen{
		{Name: "Home", Route: "/", Components: []string{"Text"}, DataRequirements: []string{"todo list", "current user", "filter"}},
		{Name: "About", Components: []string{"Text"}},
	})
	require.NoError(t, err)

	msgs := Messages(bp)
	require.Len(t, msgs, 5)
	assert.Equal(t, MessageBeginRendering, msgs[0].Type)
	assert.Equal(t, "root", msgs[0].SurfaceID)
	assert.Equal(t, MessageSurfaceUpdate, msgs[1].Type)
	assert.Equal(t, MessageDataModelUpdate, msgs[2].Type)
	assert.Equal(t, []any{}, msgs[2].DataModel["todo list"])
	assert.Contains(t, msgs[2].DataModel["current user"], "email")
	assert.Nil(t, msgs[2].DataModel["filter"])
	assert.Equal(t, "about", msgs[4].SurfaceID)

	data, err := JSONL(bp)
	require.NoError(t, err)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lines := 0
	for scanner.Scan() {
		var m Message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines++
	}
	assert.Equal(t, 5, lines)
}

func TestCode(t *testing.T) {
	g := newTestGenerator()
	screens := []Screen{{Name: "Todo List", Route: "/todos/list", Components: []string{"Text", "Button", "Calendar"}}}

	tests := []struct {
		platform Platform
		ext      string
		contains []string
	}{
		{PlatformReact, "tsx", []string{"export function TodosListScreen()", "<h1>Todo List</h1>", "<button type=\"button\">Button</button>", "<div className=\"calendar\" />"}},
		{PlatformReactNative, "tsx", []string{"export function TodosListScreen()"}},
		{PlatformFlutter, "dart", []string{"class TodosListScreen extends StatelessWidget", "appBar: AppBar(title: const Text('Todo List'))", "ElevatedButton(", "Container() /* Calendar */"}},
		{PlatformAngular, "", nil},
		{PlatformConsole, "", nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			bp, err := g.Generate("todo-app", tt.platform, screens)
			require.NoError(t, err)
			code, ext := Code(bp)
			assert.Equal(t, tt.ext, ext)
			for _, s := range tt.contains {
				assert.Contains(t, code, s)
			}

			files, err := Files(bp)
			require.NoError(t, err)
			paths := generate.Paths(files)
			assert.Contains(t, paths, "ui/blueprint.json")
			assert.Contains(t, paths, "ui/messages.jsonl")
			if tt.ext == "" {
				assert.Len(t, files, 2)
			} else {
				assert.Contains(t, paths, "ui/screens."+tt.ext)
			}
		})
	}
}

func TestComponentName(t *testing.T) {
	assert.Equal(t, "HomeScreen", componentName("home", 0))
	assert.Equal(t, "UserProfileScreen", componentName("user-profile", 0))
	assert.Equal(t, "Screen2404Screen", componentName("404", 1))
}

func TestCatalogQueries(t *testing.T) {
	c := DefaultCatalog()
	layout := c.ByCategory(CategoryLayout)
	require.NotEmpty(t, layout)
	for _, w := range layout {
		assert.Equal(t, CategoryLayout, w.Category)
	}

	console := c.ForPlatform(PlatformConsole)
	for _, w := range console {
		assert.True(t, w.Supports(PlatformConsole))
	}
	assert.False(t, c["Image"].Supports(PlatformConsole))

	_, err := ParsePlatform("react-native")
	assert.NoError(t, err)
	_, err = ParsePlatform("qt")
	assert.Error(t, err)
}

// Package blueprint generates A2UI (agent-to-UI) blueprints: declarative,
// framework-agnostic screen descriptions that can be streamed as JSONL
// messages or rendered to React and Flutter starter code.
package blueprint

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Platform is a render target.
type Platform string

const (
	PlatformReact       Platform = "react"
	PlatformFlutter     Platform = "flutter"
	PlatformReactNative Platform = "react-native"
	PlatformWeb         Platform = "web"
	PlatformAngular     Platform = "angular"
	PlatformConsole     Platform = "console"
)

// Platforms returns every supported platform.
func Platforms() []Platform {
	return []Platform{PlatformReact, PlatformFlutter, PlatformReactNative, PlatformWeb, PlatformAngular, PlatformConsole}
}

// ParsePlatform validates s.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !slices.Contains(Platforms(), p) {
		names := make([]string, 0, len(Platforms()))
		for _, p := range Platforms() {
			names = append(names, string(p))
		}
		return "", fmt.Errorf("unsupported platform %q (expected one of %s)", s, strings.Join(names, ", "))
	}
	return p, nil
}

// Category groups widgets.
type Category string

const (
	CategoryLayout     Category = "layout"
	CategoryInput      Category = "input"
	CategoryDisplay    Category = "display"
	CategoryNavigation Category = "navigation"
	CategoryFeedback   Category = "feedback"
	// CategoryCustom marks widgets that are not in the catalog.
	CategoryCustom Category = "custom"
)

// Widget describes one catalog entry.
type Widget struct {
	Name         string         `json:"name"`
	Category     Category       `json:"category"`
	Description  string         `json:"description"`
	DefaultProps map[string]any `json:"defaultProps,omitempty"`
	DefaultStyle map[string]any `json:"defaultStyle,omitempty"`
	Children     bool           `json:"children,omitempty"`
	Platforms    []Platform     `json:"platforms"`
}

// Supports reports whether the widget renders on p.
func (w Widget) Supports(p Platform) bool {
	return slices.Contains(w.Platforms, p)
}

// Catalog is the set of known widgets keyed by name.
type Catalog map[string]Widget

// Lookup returns the widget for name. Unknown names yield a custom widget
// that renders everywhere except the console.
func (c Catalog) Lookup(name string) (Widget, bool) {
	if w, ok := c[name]; ok {
		return w, true
	}
	return Widget{
		Name:        name,
		Category:    CategoryCustom,
		Description: "Custom widget",
		Platforms:   []Platform{PlatformReact, PlatformFlutter, PlatformReactNative, PlatformWeb, PlatformAngular},
	}, false
}

// ByCategory returns the widgets in category, sorted by name.
func (c Catalog) ByCategory(category Category) []Widget {
	var out []Widget
	for _, w := range c {
		if w.Category == category {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForPlatform returns the widgets that render on p, sorted by name.
func (c Catalog) ForPlatform(p Platform) []Widget {
	var out []Widget
	for _, w := range c {
		if w.Supports(p) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var (
	allPlatforms = Platforms()
	guiPlatforms = []Platform{PlatformReact, PlatformFlutter, PlatformReactNative, PlatformWeb, PlatformAngular}
)

func widget(name string, cat Category, desc string, children bool, platforms []Platform, props, style map[string]any) Widget {
	return Widget{Name: name, Category: cat, Description: desc, Children: children, Platforms: platforms, DefaultProps: props, DefaultStyle: style}
}

// DefaultCatalog returns a fresh copy of the built-in widget catalog.
func DefaultCatalog() Catalog {
	widgets := []Widget{
		widget("Container", CategoryLayout, "A container that holds other widgets", true, allPlatforms, nil, map[string]any{"padding": 8}),
		widget("Row", CategoryLayout, "Horizontal layout container", true, guiPlatforms, nil, map[string]any{"display": "flex", "flexDirection": "row"}),
		widget("Column", CategoryLayout, "Vertical layout container", true, guiPlatforms, nil, map[string]any{"display": "flex", "flexDirection": "column"}),
		widget("Grid", CategoryLayout, "Grid layout container", true, guiPlatforms, map[string]any{"columns": 2}, nil),
		widget("Stack", CategoryLayout, "Overlay layout", true, guiPlatforms, nil, nil),
		widget("Scroll", CategoryLayout, "Scrollable container", true, guiPlatforms, map[string]any{"direction": "vertical"}, nil),

		widget("Text", CategoryDisplay, "Text content", false, allPlatforms, map[string]any{"variant": "body"}, nil),
		widget("Image", CategoryDisplay, "Image", false, guiPlatforms, map[string]any{"fit": "contain"}, nil),
		widget("Icon", CategoryDisplay, "Icon", false, allPlatforms, map[string]any{"size": 24}, nil),
		widget("Avatar", CategoryDisplay, "User avatar", false, guiPlatforms, map[string]any{"size": "medium"}, nil),
		widget("Card", CategoryDisplay, "Card container with elevation", true, guiPlatforms, nil, map[string]any{"borderRadius": 8, "elevation": 2}),
		widget("Divider", CategoryDisplay, "Visual separator", false, allPlatforms, nil, nil),
		widget("Badge", CategoryDisplay, "Notification badge", false, guiPlatforms, map[string]any{"variant": "default"}, nil),
		widget("Chip", CategoryDisplay, "Compact element for tags and filters", false, guiPlatforms, map[string]any{"deletable": false}, nil),
		widget("List", CategoryDisplay, "List of items", true, allPlatforms, nil, nil),
		widget("ListItem", CategoryDisplay, "Item in a list", true, allPlatforms, nil, nil),
		widget("Table", CategoryDisplay, "Tabular data", false, allPlatforms, nil, nil),

		widget("Button", CategoryInput, "Clickable button", false, allPlatforms, map[string]any{"variant": "contained"}, nil),
		widget("TextField", CategoryInput, "Text input", false, allPlatforms, map[string]any{"variant": "outlined"}, nil),
		widget("TextArea", CategoryInput, "Multi-line text input", false, guiPlatforms, map[string]any{"rows": 4}, nil),
		widget("Checkbox", CategoryInput, "Checkbox", false, allPlatforms, map[string]any{"checked": false}, nil),
		widget("Radio", CategoryInput, "Radio button", false, allPlatforms, nil, nil),
		widget("Switch", CategoryInput, "Toggle switch", false, guiPlatforms, map[string]any{"value": false}, nil),
		widget("Slider", CategoryInput, "Range slider", false, guiPlatforms, map[string]any{"min": 0, "max": 100}, nil),
		widget("Select", CategoryInput, "Dropdown select", false, allPlatforms, map[string]any{"multiple": false}, nil),
		widget("DatePicker", CategoryInput, "Date picker", false, guiPlatforms, nil, nil),
		widget("TimePicker", CategoryInput, "Time picker", false, guiPlatforms, nil, nil),
		widget("FileUpload", CategoryInput, "File upload", false, guiPlatforms, map[string]any{"multiple": false}, nil),
		widget("Form", CategoryInput, "Form container", true, guiPlatforms, nil, nil),
		widget("FormField", CategoryInput, "Labelled form field", true, guiPlatforms, nil, nil),

		widget("AppBar", CategoryNavigation, "Top application bar", true, guiPlatforms, nil, nil),
		widget("BottomNav", CategoryNavigation, "Bottom navigation bar", true, guiPlatforms, nil, nil),
		widget("Drawer", CategoryNavigation, "Side navigation drawer", true, guiPlatforms, nil, nil),
		widget("Tabs", CategoryNavigation, "Tab container", true, guiPlatforms, nil, nil),
		widget("TabItem", CategoryNavigation, "Single tab", true, guiPlatforms, nil, nil),
		widget("Breadcrumb", CategoryNavigation, "Breadcrumb trail", false, guiPlatforms, nil, nil),
		widget("Link", CategoryNavigation, "Navigation link", false, allPlatforms, nil, nil),
		widget("Fab", CategoryNavigation, "Floating action button", false, guiPlatforms, map[string]any{"position": "bottom-right"}, nil),

		widget("Alert", CategoryFeedback, "Inline alert", false, allPlatforms, map[string]any{"severity": "info"}, nil),
		widget("Snackbar", CategoryFeedback, "Transient message", false, guiPlatforms, map[string]any{"duration": 3000}, nil),
		widget("Dialog", CategoryFeedback, "Modal dialog", true, guiPlatforms, nil, nil),
		widget("Progress", CategoryFeedback, "Progress indicator", false, allPlatforms, map[string]any{"variant": "circular"}, nil),
		widget("Skeleton", CategoryFeedback, "Loading placeholder", false, guiPlatforms, map[string]any{"variant": "text"}, nil),
		widget("Tooltip", CategoryFeedback, "Hover hint", true, guiPlatforms, nil, nil),
	}

	c := make(Catalog, len(widgets))
	for _, w := range widgets {
		c[w.Name] = w
	}
	return c
}

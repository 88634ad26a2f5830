package generate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// Accepted frontend answer values.
var (
	FrontendPlatforms    = []string{"google-stitch", "lovable", "v0", "bolt", "generic"}
	FrontendDesignStyles = []string{"modern", "minimal", "colorful", "professional", "playful"}
	FrontendColorSchemes = []string{"light", "dark", "auto"}
	FrontendUIFrameworks = []string{"tailwind", "mui", "chakra", "ant-design"}
)

// FrontendQuestion is one entry in the frontend questionnaire.
type FrontendQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Examples []string `json:"examples,omitempty"`
	Optional bool     `json:"optional,omitempty"`
}

// FrontendQuestions returns the questionnaire answered before the frontend
// prompt is generated.
func FrontendQuestions() []FrontendQuestion {
	return []FrontendQuestion{
		{ID: "platform", Question: "Which no-code/low-code platform will you use?", Options: FrontendPlatforms},
		{ID: "designStyle", Question: "What design style do you prefer?", Options: FrontendDesignStyles},
		{ID: "colorScheme", Question: "Light or dark mode?", Options: FrontendColorSchemes},
		{ID: "primaryColor", Question: "What should be the main color?", Examples: []string{"blue", "green", "purple", "#3B82F6"}},
		{ID: "uiFramework", Question: "Which UI library should be used?", Options: FrontendUIFrameworks, Optional: true},
		{ID: "features", Question: "What UI features do you need?", Examples: []string{"dark mode toggle", "responsive design", "animations", "accessibility"}, Optional: true},
	}
}

// RenderFrontendQuestions renders the questionnaire and an example
// generate_frontend_prompt call.
func RenderFrontendQuestions(project string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Frontend preferences for %s\n\nPlease answer these questions to generate your frontend prompt:\n\n", project)
	for i, q := range FrontendQuestions() {
		opt := ""
		if q.Optional {
			opt = " (optional)"
		}
		fmt.Fprintf(&b, "%d. %s%s: %s\n", i+1, q.ID, opt, q.Question)
		if len(q.Options) > 0 {
			fmt.Fprintf(&b, "   Options: %s\n", strings.Join(q.Options, ", "))
		}
		if len(q.Examples) > 0 {
			fmt.Fprintf(&b, "   Examples: %s\n", strings.Join(q.Examples, ", "))
		}
	}
	b.WriteString("\nNext step: call generate_frontend_prompt with your answers, for example:\n")
	fmt.Fprintf(&b, `{
  "project_name": %q,
  "frontend_answers": {
    "platform": "lovable",
    "designStyle": "modern",
    "colorScheme": "dark",
    "primaryColor": "blue",
    "uiFramework": "tailwind",
    "features": ["dark mode", "responsive", "smooth animations"]
  }
}
`, project)
	return b.String()
}

// ValidateFrontendAnswers checks enumerated answers. Platform is required;
// the other enumerated fields may be empty.
func ValidateFrontendAnswers(a workflow.FrontendAnswers) error {
	if err := oneOf("platform", a.Platform, FrontendPlatforms, true); err != nil {
		return err
	}
	if err := oneOf("designStyle", a.DesignStyle, FrontendDesignStyles, false); err != nil {
		return err
	}
	if err := oneOf("colorScheme", a.ColorScheme, FrontendColorSchemes, false); err != nil {
		return err
	}
	return oneOf("uiFramework", a.UIFramework, FrontendUIFrameworks, false)
}

func oneOf(field, value string, allowed []string, required bool) error {
	if value == "" && !required {
		return nil
	}
	if slices.Contains(allowed, value) {
		return nil
	}
	return &workflow.InvalidInputError{
		Field:  field,
		Reason: fmt.Sprintf("%q is not one of %s", value, strings.Join(allowed, ", ")),
	}
}

var platformNames = map[string]string{
	"google-stitch": "Google Stitch",
	"lovable":       "Lovable",
	"v0":            "v0.dev",
	"bolt":          "Bolt.new",
	"generic":       "your frontend builder",
}

// FrontendPrompt renders the prompt the user pastes into their frontend
// builder: main prompt, design system, screens, API integration and flows.
func FrontendPrompt(p *workflow.Project, a workflow.FrontendAnswers) string {
	style := orDefault(a.DesignStyle, "modern")
	scheme := orDefault(a.ColorScheme, "auto")
	framework := orDefault(a.UIFramework, "tailwind")
	color := orDefault(a.PrimaryColor, "blue")

	var b strings.Builder
	fmt.Fprintf(&b, "# Frontend Prompt: %s\n\n", p.Name)
	fmt.Fprintf(&b, "Target platform: %s\n\n", platformNames[a.Platform])

	b.WriteString("## Main Prompt\n\n")
	fmt.Fprintf(&b, "Build a %s, %s web application for %q. %s\n", style, responsiveNote(a.Features), p.Name, p.Description)
	fmt.Fprintf(&b, "Use %s components, a %s color scheme and %s as the primary color.\n", framework, scheme, color)
	if spec := specOf(p); spec != nil && spec.Overview != "" {
		fmt.Fprintf(&b, "\n%s\n", spec.Overview)
	}

	b.WriteString("\n## Design System\n\n")
	fmt.Fprintf(&b, "- Style: %s\n- Color scheme: %s\n- Primary color: %s\n- UI framework: %s\n", style, scheme, color, framework)
	b.WriteString("- Typography: one sans-serif family, clear heading scale\n- Spacing: 4px grid\n")
	if len(a.Features) > 0 {
		fmt.Fprintf(&b, "- Features: %s\n", strings.Join(a.Features, ", "))
	}

	screens := frontendScreens(p)
	b.WriteString("\n## Screens\n\n")
	for _, s := range screens {
		fmt.Fprintf(&b, "- **%s**\n", s)
	}

	if endpoints := endpointsOf(p); len(endpoints) > 0 {
		b.WriteString("\n## API Integration\n\nThe backend base URL is configurable. Call these endpoints:\n\n")
		for _, ep := range endpoints {
			auth := ""
			if ep.RequiresAuth {
				auth = " (send `Authorization: Bearer <token>`)"
			}
			fmt.Fprintf(&b, "- `%s %s`: %s%s\n", ep.Method, ep.Path, ep.Description, auth)
		}
		b.WriteString("\nShow a loading state while requests are in flight and a readable error message when they fail.\n")
	}

	if spec := specOf(p); spec != nil && len(spec.UserStories) > 0 {
		b.WriteString("\n## User Flows\n\n")
		for _, us := range spec.UserStories {
			fmt.Fprintf(&b, "### %s\n\nAs a %s, I want %s so that %s.\n", us.ID, us.AsA, us.IWant, us.SoThat)
			for _, ac := range us.AcceptanceCriteria {
				fmt.Fprintf(&b, "- %s\n", ac)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// frontendScreens derives one screen per data model plus the common shell.
func frontendScreens(p *workflow.Project) []string {
	screens := []string{"Dashboard"}
	if p.SpecKit != nil {
		for _, m := range p.SpecKit.TechnicalPlan.DataModels {
			screens = append(screens, m.Name+" list", m.Name+" detail")
		}
		for _, ep := range p.SpecKit.TechnicalPlan.Endpoints {
			if ep.RequiresAuth {
				screens = append(screens, "Sign in")
				break
			}
		}
	}
	return append(screens, "Settings")
}

func specOf(p *workflow.Project) *workflow.Specification {
	if p.SpecKit == nil {
		return nil
	}
	return &p.SpecKit.Specification
}

func responsiveNote(features []string) string {
	for _, f := range features {
		if strings.Contains(strings.ToLower(f), "mobile") {
			return "mobile-first"
		}
	}
	return "responsive"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

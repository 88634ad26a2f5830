package generate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const postmanSchema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// Environments are the Postman environments generated for every project.
var Environments = []string{"dev", "staging", "prod"}

// PostmanCollection is a Postman v2.1 collection.
type PostmanCollection struct {
	Info     PostmanInfo       `json:"info"`
	Item     []PostmanItem     `json:"item"`
	Variable []PostmanVariable `json:"variable,omitempty"`
}

// PostmanInfo identifies a collection.
type PostmanInfo struct {
	PostmanID   string `json:"_postman_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema"`
}

// PostmanItem is either a folder (Item set) or a request.
type PostmanItem struct {
	Name    string          `json:"name"`
	Item    []PostmanItem   `json:"item,omitempty"`
	Request *PostmanRequest `json:"request,omitempty"`
	Event   []PostmanEvent  `json:"event,omitempty"`
}

// PostmanRequest is a single HTTP request.
type PostmanRequest struct {
	Method      string          `json:"method"`
	Header      []PostmanHeader `json:"header"`
	URL         PostmanURL      `json:"url"`
	Body        *PostmanBody    `json:"body,omitempty"`
	Description string          `json:"description,omitempty"`
}

// PostmanHeader is a request header.
type PostmanHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PostmanURL is a request URL split the way Postman stores it.
type PostmanURL struct {
	Raw  string   `json:"raw"`
	Host []string `json:"host"`
	Path []string `json:"path"`
}

// PostmanBody is a raw request body.
type PostmanBody struct {
	Mode    string         `json:"mode"`
	Raw     string         `json:"raw"`
	Options map[string]any `json:"options,omitempty"`
}

// PostmanEvent attaches a script to a request.
type PostmanEvent struct {
	Listen string        `json:"listen"`
	Script PostmanScript `json:"script"`
}

// PostmanScript is a test or pre-request script.
type PostmanScript struct {
	Type string   `json:"type"`
	Exec []string `json:"exec"`
}

// PostmanVariable is a collection or environment variable.
type PostmanVariable struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// PostmanEnvironment is a Postman environment file.
type PostmanEnvironment struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Values []PostmanVariable `json:"values"`
	Scope  string            `json:"_postman_variable_scope"`
}

// NewmanCommands are ready-to-run newman invocations.
type NewmanCommands struct {
	RunAll          string `json:"runAll"`
	RunWithReporter string `json:"runWithReporter"`
	CICD            string `json:"cicd"`
}

// NewPostmanCollection builds the collection for the project's endpoints,
// grouped into one folder per top-level resource. Projects without planned
// endpoints get a single health check.
func NewPostmanCollection(p *workflow.Project) PostmanCollection {
	c := PostmanCollection{
		Info: PostmanInfo{
			PostmanID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("devforge:"+p.Name)).String(),
			Name:        p.Name + " API",
			Description: p.Description,
			Schema:      postmanSchema,
		},
		Variable: []PostmanVariable{{Key: "base_url", Value: "http://localhost:3000"}},
	}

	endpoints := endpointsOf(p)
	if len(endpoints) == 0 {
		endpoints = []workflow.Endpoint{{Method: http.MethodGet, Path: "/health", Description: "Health check", Status: http.StatusOK}}
	}

	folders := make(map[string][]PostmanItem)
	for _, ep := range endpoints {
		name := resourceOf(ep.Path)
		folders[name] = append(folders[name], postmanRequest(ep))
	}
	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.Item = append(c.Item, PostmanItem{Name: titleCase(name), Item: folders[name]})
	}
	return c
}

func endpointsOf(p *workflow.Project) []workflow.Endpoint {
	if p.SpecKit == nil {
		return nil
	}
	return p.SpecKit.TechnicalPlan.Endpoints
}

// resourceOf returns the first path segment that is not "api" or a version.
func resourceOf(path string) string {
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" || seg == "api" || isVersion(seg) || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "{") {
			continue
		}
		return seg
	}
	return "root"
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func postmanRequest(ep workflow.Endpoint) PostmanItem {
	status := ep.Status
	if status == 0 {
		status = defaultStatus(ep.Method)
	}

	segments := []string{}
	for _, seg := range strings.Split(strings.Trim(ep.Path, "/"), "/") {
		if seg == "" {
			continue
		}
		// Path parameters become collection variables.
		if strings.HasPrefix(seg, ":") {
			seg = "{{" + strings.TrimPrefix(seg, ":") + "}}"
		} else if strings.HasPrefix(seg, "{") && !strings.HasPrefix(seg, "{{") {
			seg = "{" + seg + "}"
		}
		segments = append(segments, seg)
	}

	req := &PostmanRequest{
		Method:      ep.Method,
		Header:      []PostmanHeader{{Key: "Content-Type", Value: "application/json"}},
		URL:         PostmanURL{Raw: "{{base_url}}/" + strings.Join(segments, "/"), Host: []string{"{{base_url}}"}, Path: segments},
		Description: ep.Description,
	}
	if ep.RequiresAuth {
		req.Header = append(req.Header, PostmanHeader{Key: "Authorization", Value: "Bearer {{auth_token}}"})
	}
	if ep.RequestBody != "" || ep.Method == http.MethodPost || ep.Method == http.MethodPut || ep.Method == http.MethodPatch {
		body := ep.RequestBody
		if body == "" {
			body = "{}"
		}
		req.Body = &PostmanBody{Mode: "raw", Raw: body, Options: map[string]any{"raw": map[string]string{"language": "json"}}}
	}

	tests := []string{
		fmt.Sprintf("pm.test(\"status is %d\", function () {", status),
		fmt.Sprintf("    pm.response.to.have.status(%d);", status),
		"});",
		"pm.test(\"responds within 2s\", function () {",
		"    pm.expect(pm.response.responseTime).to.be.below(2000);",
		"});",
	}
	if status != http.StatusNoContent {
		tests = append(tests,
			"pm.test(\"returns JSON\", function () {",
			"    pm.response.to.be.json;",
			"});",
		)
	}

	return PostmanItem{
		Name:    fmt.Sprintf("%s %s", ep.Method, ep.Path),
		Request: req,
		Event:   []PostmanEvent{{Listen: "test", Script: PostmanScript{Type: "text/javascript", Exec: tests}}},
	}
}

func defaultStatus(method string) int {
	switch method {
	case http.MethodPost:
		return http.StatusCreated
	case http.MethodDelete:
		return http.StatusNoContent
	default:
		return http.StatusOK
	}
}

// NewPostmanEnvironment builds the environment file for env.
func NewPostmanEnvironment(p *workflow.Project, env string) PostmanEnvironment {
	enabled := true
	base := map[string]string{
		"dev":     "http://localhost:3000",
		"staging": fmt.Sprintf("https://staging-api.%s.example.com", slug(p.Name)),
		"prod":    fmt.Sprintf("https://api.%s.example.com", slug(p.Name)),
	}[env]
	return PostmanEnvironment{
		ID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("devforge:"+p.Name+":"+env)).String(),
		Name: fmt.Sprintf("%s (%s)", p.Name, env),
		Values: []PostmanVariable{
			{Key: "base_url", Value: base, Type: "default", Enabled: &enabled},
			{Key: "auth_token", Value: "", Type: "secret", Enabled: &enabled},
		},
		Scope: "environment",
	}
}

// Newman returns the newman commands for the generated files.
func Newman() NewmanCommands {
	const base = "newman run postman/collection.json -e postman/dev.environment.json"
	return NewmanCommands{
		RunAll:          base,
		RunWithReporter: base + " -r cli,htmlextra --reporter-htmlextra-export reports/api-tests.html",
		CICD:            "newman run postman/collection.json -e postman/staging.environment.json --bail -r cli,junit --reporter-junit-export reports/junit.xml",
	}
}

// APITestFiles returns the collection, one environment per entry in
// Environments and the API testing guide.
func APITestFiles(p *workflow.Project) ([]File, error) {
	collection, err := json.MarshalIndent(NewPostmanCollection(p), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding postman collection: %w", err)
	}
	files := []File{{Path: "postman/collection.json", Content: collection}}

	for _, env := range Environments {
		data, err := json.MarshalIndent(NewPostmanEnvironment(p, env), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %s environment: %w", env, err)
		}
		files = append(files, File{Path: fmt.Sprintf("postman/%s.environment.json", env), Content: data})
	}

	files = append(files, File{Path: "docs/API_TESTING_GUIDE.md", Content: []byte(APITestingGuide(p))})
	return files, nil
}

// APITestingGuide explains how to run the generated collection.
func APITestingGuide(p *workflow.Project) string {
	cmds := Newman()
	var b strings.Builder
	fmt.Fprintf(&b, "# API Testing Guide: %s\n\n", p.Name)
	b.WriteString("## Files\n\n")
	b.WriteString("- `postman/collection.json`: requests with status, latency and content-type tests\n")
	for _, env := range Environments {
		fmt.Fprintf(&b, "- `postman/%s.environment.json`: `base_url` and `auth_token` for %s\n", env, env)
	}
	b.WriteString("\n## Postman\n\n")
	b.WriteString("1. Import `postman/collection.json`.\n")
	b.WriteString("2. Import the environment files and select one.\n")
	b.WriteString("3. Set `auth_token` if the API requires authentication.\n")
	b.WriteString("4. Run the collection with the Collection Runner.\n\n")
	b.WriteString("## Newman\n\n```bash\nnpm install -g newman newman-reporter-htmlextra\n")
	fmt.Fprintf(&b, "%s\n%s\n```\n\n", cmds.RunAll, cmds.RunWithReporter)
	fmt.Fprintf(&b, "## CI\n\n```bash\n%s\n```\n\n", cmds.CICD)

	endpoints := endpointsOf(p)
	if len(endpoints) > 0 {
		b.WriteString("## Covered endpoints\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(&b, "- `%s %s` %s\n", ep.Method, ep.Path, ep.Description)
		}
	}
	return b.String()
}

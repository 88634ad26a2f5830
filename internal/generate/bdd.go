package generate

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const (
	featuresDir        = "tests/features"
	stepDefinitionPath = "tests/step-definitions/steps.ts"
	cucumberConfigPath = "cucumber.js"
)

// BDDFiles returns the feature files, the step definitions and the cucumber
// configuration for p.
func BDDFiles(p *workflow.Project) []File {
	files := BDDFeatures(p)
	files = append(files, StepDefinitions(p), File{Path: cucumberConfigPath, Content: []byte(cucumberConfig)})
	return files
}

// BDDFeatures renders one Gherkin feature per user story. Projects without
// user stories get a single API feature built from the planned endpoints.
func BDDFeatures(p *workflow.Project) []File {
	spec := specOf(p)
	if spec == nil || len(spec.UserStories) == 0 {
		return []File{{Path: featuresDir + "/api.feature", Content: []byte(apiFeature(p))}}
	}

	files := make([]File, 0, len(spec.UserStories))
	seen := make(map[string]int)
	for _, us := range spec.UserStories {
		name := slug(us.ID + " " + us.IWant)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s-%d", name, n+1)
		}
		seen[name]++
		files = append(files, File{
			Path:    fmt.Sprintf("%s/%s.feature", featuresDir, name),
			Content: []byte(storyFeature(us)),
		})
	}
	return files
}

func storyFeature(us workflow.UserStory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s\nFeature: %s\n", slug(us.ID), sentence(us.IWant))
	fmt.Fprintf(&b, "  As a %s\n  I want %s\n  So that %s\n\n", us.AsA, us.IWant, us.SoThat)
	fmt.Fprintf(&b, "  Background:\n    Given I am a %q\n\n", us.AsA)

	criteria := us.AcceptanceCriteria
	if len(criteria) == 0 {
		criteria = []string{us.IWant}
	}
	for _, ac := range criteria {
		fmt.Fprintf(&b, "  Scenario: %s\n", sentence(ac))
		fmt.Fprintf(&b, "    When I perform %q\n", strings.TrimSuffix(lowerFirst(us.IWant), "."))
		fmt.Fprintf(&b, "    Then I expect %q\n\n", strings.TrimSuffix(lowerFirst(ac), "."))
	}
	return b.String()
}

func apiFeature(p *workflow.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@api\nFeature: %s API\n\n", p.Name)
	endpoints := endpointsOf(p)
	if len(endpoints) == 0 {
		endpoints = []workflow.Endpoint{{Method: "GET", Path: "/health", Description: "Health check"}}
	}
	for _, ep := range endpoints {
		status := ep.Status
		if status == 0 {
			status = defaultStatus(ep.Method)
		}
		fmt.Fprintf(&b, "  Scenario: %s\n", sentence(orDefault(ep.Description, ep.Method+" "+ep.Path)))
		if ep.RequiresAuth {
			b.WriteString("    Given I am authenticated\n")
		}
		fmt.Fprintf(&b, "    When I send a %s request to \"%s\"\n", ep.Method, ep.Path)
		fmt.Fprintf(&b, "    Then the response status should be %d\n\n", status)
	}
	return b.String()
}

// StepDefinitions renders cucumber-js step definitions for the generic
// steps used by the generated features.
func StepDefinitions(p *workflow.Project) File {
	var b strings.Builder
	fmt.Fprintf(&b, "// Step definitions for %s.\n", p.Name)
	b.WriteString(stepDefinitions)
	return File{Path: stepDefinitionPath, Content: []byte(b.String())}
}

const stepDefinitions = `import { Given, When, Then, Before } from '@cucumber/cucumber';
import assert from 'node:assert/strict';

const baseUrl = process.env.BASE_URL ?? 'http://localhost:3000';

interface World {
  role?: string;
  token?: string;
  response?: Response;
  lastAction?: string;
}

Before(function (this: World) {
  this.role = undefined;
  this.token = process.env.AUTH_TOKEN;
  this.response = undefined;
  this.lastAction = undefined;
});

Given('I am a {string}', function (this: World, role: string) {
  this.role = role;
});

Given('I am authenticated', function (this: World) {
  assert.ok(this.token, 'AUTH_TOKEN must be set for authenticated scenarios');
});

When('I send a {word} request to {string}', async function (this: World, method: string, path: string) {
  const headers: Record<string, string> = { 'Content-Type': 'application/json' };
  if (this.token) {
    headers.Authorization = ` + "`Bearer ${this.token}`" + `;
  }
  this.response = await fetch(baseUrl + path, { method, headers });
});

Then('the response status should be {int}', function (this: World, status: number) {
  assert.equal(this.response?.status, status);
});

When('I perform {string}', function (this: World, action: string) {
  this.lastAction = action;
  return 'pending';
});

Then('I expect {string}', function (this: World, _outcome: string) {
  return 'pending';
});
`

const cucumberConfig = `module.exports = {
  default: {
    requireModule: ['ts-node/register'],
    require: ['tests/step-definitions/**/*.ts'],
    paths: ['tests/features/**/*.feature'],
    format: ['progress', 'html:reports/cucumber.html'],
  },
};
`

func sentence(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerFirst(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

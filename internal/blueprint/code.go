package blueprint

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/devforge/internal/generate"
)

// Code renders starter code for the blueprint's platform. It returns the
// code and its file extension; platforms without a code renderer return
// empty strings and rely on the JSONL stream.
func Code(bp *Blueprint) (code, ext string) {
	switch bp.Platform {
	case PlatformReact, PlatformReactNative, PlatformWeb:
		return ReactCode(bp), "tsx"
	case PlatformFlutter:
		return FlutterCode(bp), "dart"
	default:
		return "", ""
	}
}

// Files returns the blueprint JSON, the JSONL stream and any starter code
// as files under ui/.
func Files(bp *Blueprint) ([]generate.File, error) {
	doc, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding blueprint: %w", err)
	}
	stream, err := JSONL(bp)
	if err != nil {
		return nil, err
	}
	files := []generate.File{
		{Path: "ui/blueprint.json", Content: doc},
		{Path: "ui/messages.jsonl", Content: stream},
	}
	if code, ext := Code(bp); code != "" {
		files = append(files, generate.File{Path: fmt.Sprintf("ui/screens.%s", ext), Content: []byte(code)})
	}
	return files, nil
}

// ReactCode renders one function component per surface.
func ReactCode(bp *Blueprint) string {
	var b strings.Builder
	writeHeader(&b, bp, "React")
	b.WriteString("import React from 'react';\n\n")
	for i, s := range bp.Surfaces {
		fmt.Fprintf(&b, "export function %s() {\n  return (\n", componentName(s.SurfaceID, i))
		b.WriteString("    <div className=\"column\">\n")
		for _, c := range s.Components {
			name, spec := c.Widget()
			if name == "Column" {
				continue
			}
			b.WriteString("      " + reactElement(name, spec) + "\n")
		}
		b.WriteString("    </div>\n  );\n}\n\n")
	}
	return b.String()
}

func reactElement(name string, spec ComponentSpec) string {
	switch name {
	case "AppBar":
		return fmt.Sprintf("<header className=\"app-bar\"><h1>%s</h1></header>", spec.Value)
	case "Text":
		return "<p>Text</p>"
	case "Button":
		return "<button type=\"button\">Button</button>"
	case "TextField":
		return "<input type=\"text\" />"
	case "TextArea":
		return "<textarea rows={4} />"
	case "Checkbox":
		return "<input type=\"checkbox\" />"
	case "Image":
		return "<img alt=\"\" />"
	case "Divider":
		return "<hr />"
	case "Link":
		return "<a href=\"#\">Link</a>"
	default:
		return fmt.Sprintf("<div className=\"%s\" />", kebab(name))
	}
}

// FlutterCode renders one StatelessWidget per surface.
func FlutterCode(bp *Blueprint) string {
	var b strings.Builder
	writeHeader(&b, bp, "Flutter")
	b.WriteString("import 'package:flutter/material.dart';\n\n")
	for i, s := range bp.Surfaces {
		fmt.Fprintf(&b, "class %s extends StatelessWidget {\n", componentName(s.SurfaceID, i))
		fmt.Fprintf(&b, "  const %s({super.key});\n\n", componentName(s.SurfaceID, i))
		b.WriteString("  @override\n  Widget build(BuildContext context) {\n    return Scaffold(\n")

		var body []string
		for _, c := range s.Components {
			name, spec := c.Widget()
			switch name {
			case "AppBar":
				fmt.Fprintf(&b, "      appBar: AppBar(title: const Text('%s')),\n", dartString(spec.Value))
			case "Column":
			default:
				body = append(body, flutterWidget(name))
			}
		}
		b.WriteString("      body: Padding(\n        padding: const EdgeInsets.all(16),\n        child: Column(\n          crossAxisAlignment: CrossAxisAlignment.stretch,\n          children: [\n")
		for _, w := range body {
			b.WriteString("            " + w + ",\n")
		}
		b.WriteString("          ],\n        ),\n      ),\n    );\n  }\n}\n\n")
	}
	return b.String()
}

func flutterWidget(name string) string {
	switch name {
	case "Text":
		return "const Text('Text')"
	case "Button":
		return "ElevatedButton(onPressed: () {}, child: const Text('Button'))"
	case "TextField", "TextArea":
		return "const TextField()"
	case "Checkbox":
		return "Checkbox(value: false, onChanged: (_) {})"
	case "Switch":
		return "Switch(value: false, onChanged: (_) {})"
	case "Image":
		return "const Placeholder(fallbackHeight: 120)"
	case "Divider":
		return "const Divider()"
	case "Progress":
		return "const CircularProgressIndicator()"
	case "Card":
		return "const Card(child: SizedBox(height: 80))"
	default:
		return fmt.Sprintf("Container() /* %s */", name)
	}
}

func writeHeader(b *strings.Builder, bp *Blueprint, platform string) {
	fmt.Fprintf(b, "// Generated by %s\n// Project: %s\n// Platform: %s\n\n", generatorName, bp.Metadata.ProjectName, platform)
}

// componentName turns a surface id into a PascalCase identifier.
func componentName(surfaceID string, index int) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(surfaceID, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		b.WriteString(strings.ToUpper(word[:1]) + strings.ToLower(word[1:]))
	}
	name := b.String()
	if name == "" || !unicode.IsLetter(rune(name[0])) {
		name = fmt.Sprintf("Screen%d%s", index+1, name)
	}
	return name + "Screen"
}

func kebab(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func dartString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, "$", `\$`).Replace(s)
}

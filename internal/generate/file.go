package generate

import (
	"regexp"
	"strings"
)

// File is a generated file, relative to the project directory.
type File struct {
	Path    string
	Content []byte
}

// Paths returns the paths of files in order.
func Paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slug lowercases s and joins its alphanumeric runs with dashes.
func slug(s string) string {
	out := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if out == "" {
		return "item"
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Package knowledge answers whether local documentation exists for a project.
//
// Markdown and text files under a sources directory are split into chunks
// and indexed in a chromem-go collection. Check extracts keywords from the
// project description, queries the collection and reports the matching
// sources. Embeddings come from a deterministic feature-hashing embedder by
// default, or from OpenAI through langchaingo. Watch keeps the index in step
// with the sources directory using fsnotify.
package knowledge

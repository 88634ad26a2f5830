// Package llm provides text generation for the workflow generators.
//
// A Generator wraps a langchaingo llms.Model (Google AI, Anthropic or
// OpenAI) with a request rate limiter, a per-call timeout and OpenTelemetry
// instrumentation. Credentials come from configuration or the conventional
// provider environment variables; see ResolveCredential.
package llm

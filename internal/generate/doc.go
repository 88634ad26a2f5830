// Package generate produces the artifacts of each workflow phase.
//
// MatrixGenerator and SpecKitGenerator ask a language model for structured
// JSON and validate what comes back. Everything else in this package is a
// pure function of the project: Postman collections and environments, the
// API testing guide, the frontend questionnaire and prompt, BDD feature
// files and step definitions, and the markdown rendering of the spec-kit.
//
// Generated files are returned as File values with paths relative to the
// project directory; writing them is the caller's job.
package generate

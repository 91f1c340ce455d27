// Package generate turns a note session's content and attachments into
// AI-generated structured text.
//
// The Orchestrator owns the session-side state machine: it guards against
// concurrent generations per session, assembles the multimodal payload,
// and merges results back into the store. The model call itself sits behind
// the Client interface; GeminiClient is the genkit-backed implementation
// and tests inject scripted ones.
//
// Each note.Mode maps to a fixed model, system prompt and temperature in
// this package's mode registry. An unknown mode generates with the
// structured defaults rather than failing.
package generate

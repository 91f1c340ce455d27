// Package markup reconciles the HTML note content with its other consumers.
//
// Note content is stored as an HTML fragment and is the single source of
// truth. This package derives everything else from it:
//
//   - Flatten turns a fragment into an ordered list of text runs and inline
//     binary segments for multimodal payload assembly.
//   - ApplyHighlight and StripHighlight overlay and remove transient search
//     markers. Strip is a left inverse of Apply: stripping highlighted
//     content yields the original fragment, and content at rest never
//     contains marker elements.
//   - PlainText extracts the searchable text of a fragment.
//
// All functions are pure and tolerant: malformed markup degrades gracefully
// and is never a fatal error.
package markup

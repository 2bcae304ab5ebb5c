// Package normalisers provides implementations of the Normaliser interface
// for various document formats. Each normaliser knows how to extract text
// content from a specific MIME type.
//
// Normalisers are registered with the Registry at startup; the Registry
// dispatches on a document's media type and picks the highest priority
// match.
package normalisers

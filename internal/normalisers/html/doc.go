// Package html provides a Normaliser implementation for HTML documents.
// It parses the page with goquery, drops non-content elements, converts the
// body to Markdown and then flattens the Markdown to text.
package html

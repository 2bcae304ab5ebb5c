package domain

// RawDocument is a stored blob handed to a text extractor.
type RawDocument struct {
	// Name is the display name, used for format hints such as the extension.
	Name string

	// MediaType is the content type (e.g., "text/markdown").
	MediaType string

	// Content is the raw bytes.
	Content []byte
}

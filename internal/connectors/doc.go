// Package connectors holds the document sources that feed uploads into the
// pipeline. The filesystem connector watches a drop directory.
package connectors

package postprocessors

import (
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/postprocessors/chunker"
	"github.com/custodia-labs/verity/internal/postprocessors/stats"
)

// DefaultProcessors is the processor order used for ingestion.
var DefaultProcessors = []string{"chunker", "stats"}

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("stats", func(map[string]any) (driven.PostProcessor, error) {
		return stats.New(), nil
	})
}

// NewIngestPipeline builds the chunker and stats pipeline from settings.
func NewIngestPipeline(settings domain.PipelineSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	configs := map[string]map[string]any{
		"chunker": {
			"chunk_size": settings.ChunkSize,
			"overlap":    settings.ChunkOverlap,
		},
	}

	return r.Pipeline(DefaultProcessors, configs)
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Target bytes per chunk (default: 250)
//   - overlap (int): Words carried between chunks (default: 20)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := intSetting(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(intSetting(cfg, "overlap")))
		}
	}

	return chunker.New(opts...), nil
}

// intSetting reads a numeric setting, returning 0 when absent or not a number.
func intSetting(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

package domain

import "encoding/json"

// MetadataByteLimit is the vector index's per-record metadata ceiling.
// Records whose serialized metadata exceeds it are stored without the
// compressed group text and summary.
const MetadataByteLimit = 40000

// ChunkMetadata is the metadata stored alongside a chunk's embedding.
// Immutable once upserted.
type ChunkMetadata struct {
	ID             string   `json:"id"`
	SourceDocument string   `json:"source_document"`
	PageRange      string   `json:"page_range"`
	Text           string   `json:"text"` // compressed page-group text
	TextPreview    string   `json:"text_preview"`
	Tags           []string `json:"tags"`
	Summary        string   `json:"summary"`
	TokenCount     int      `json:"token_count"`
	EmbeddingModel string   `json:"embedding_model"`
}

// ApplySizeCap empties the compressed group text and summary when the
// serialized metadata would exceed MetadataByteLimit. Returns true when
// the cap was applied.
func (m *ChunkMetadata) ApplySizeCap() bool {
	raw, err := json.Marshal(m)
	if err != nil || len(raw) <= MetadataByteLimit {
		return false
	}
	m.Text = ""
	m.Summary = ""
	return true
}

// VectorRecord pairs an embedding with its chunk metadata for upsert.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Metadata  ChunkMetadata
}

package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/complexlabs/docchat/internal/codec"
	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/parser"
	"github.com/complexlabs/docchat/internal/telemetry"
	"github.com/google/uuid"
)

const (
	// MaxUploadBytes is the upload size ceiling (10 MiB).
	MaxUploadBytes = 10 * 1024 * 1024
	// PageGroupSize is the number of consecutive pages compressed and
	// chunked together for retrieval context.
	PageGroupSize = 5
	// MaxChunkChars bounds the text embedded and enriched per chunk.
	MaxChunkChars = 10000
	// UpsertBatchSize is the vector index's per-request record limit.
	UpsertBatchSize = 100
)

// DocumentParser turns a PDF on disk into ordered per-page text.
type DocumentParser interface {
	ParseWithFallback(ctx context.Context, path string) ([]parser.Page, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Enricher derives tags and a summary for a chunk.
type Enricher interface {
	Enrich(ctx context.Context, chunkText string) (Enrichment, error)
}

// VectorRepository upserts embedding records into the vector index.
type VectorRepository interface {
	UpsertBatch(ctx context.Context, records []domain.VectorRecord) error
}

// DocumentStore persists the raw uploaded file permanently.
type DocumentStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
}

// IngestionService runs the upload pipeline: validate, persist, parse,
// group, compress, chunk, embed, enrich, upsert.
type IngestionService struct {
	parser    DocumentParser
	embedding EmbeddingClient
	enricher  Enricher
	vectors   VectorRepository
	store     DocumentStore
	chunkCfg  ChunkConfig
	modelName string
	tempDir   string
}

// NewIngestionService creates an IngestionService. store may be nil when
// no permanent object store is configured; the pipeline then keeps only
// the working copy.
func NewIngestionService(
	docParser DocumentParser,
	embedding EmbeddingClient,
	enricher Enricher,
	vectors VectorRepository,
	store DocumentStore,
	embeddingModelName string,
) *IngestionService {
	return &IngestionService{
		parser:    docParser,
		embedding: embedding,
		enricher:  enricher,
		vectors:   vectors,
		store:     store,
		chunkCfg:  DefaultChunkConfig(),
		modelName: embeddingModelName,
		tempDir:   os.TempDir(),
	}
}

// IngestInput describes one uploaded document.
type IngestInput struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// IngestResult reports the outcome of one upload.
type IngestResult struct {
	UploadedChunks int
}

// ValidateUpload rejects non-PDF or oversized uploads before any
// storage or parsing happens.
func ValidateUpload(filename string, size int64) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return domain.ErrNotPDF
	}
	if size > MaxUploadBytes {
		return domain.ErrFileTooLarge
	}
	return nil
}

// Ingest runs the full pipeline for one uploaded PDF and returns the
// number of chunks upserted. Zero chunks is a valid outcome when the
// document has no extractable text.
func (s *IngestionService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		Document:  input.Filename,
		Operation: "ingest",
	})
	defer span.End()

	if err := ValidateUpload(input.Filename, input.Size); err != nil {
		return nil, err
	}

	workingPath, err := s.persistUpload(ctx, input)
	if err != nil {
		return nil, err
	}
	defer os.Remove(workingPath)

	pages, err := s.parser.ParseWithFallback(ctx, workingPath)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDependencyError("failed to parse document", err)
	}

	records, err := s.buildRecords(ctx, input.Filename, pages)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	for start := 0; start < len(records); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.vectors.UpsertBatch(ctx, records[start:end]); err != nil {
			span.SetError(err)
			return nil, domain.NewDependencyError("failed to upsert vectors", err)
		}
	}

	log.Printf("ingestion: uploaded %d chunk(s) from %s", len(records), input.Filename)
	return &IngestResult{UploadedChunks: len(records)}, nil
}

// persistUpload writes the working copy to the temp dir and, when a
// permanent store is configured, the raw file to it. Returns the
// working copy path.
func (s *IngestionService) persistUpload(ctx context.Context, input IngestInput) (string, error) {
	workingPath := filepath.Join(s.tempDir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(input.Filename)))

	f, err := os.Create(workingPath)
	if err != nil {
		return "", domain.NewDependencyError("failed to stage upload", err)
	}
	if _, err := io.Copy(f, input.Content); err != nil {
		f.Close()
		os.Remove(workingPath)
		return "", domain.NewDependencyError("failed to stage upload", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(workingPath)
		return "", domain.NewDependencyError("failed to stage upload", err)
	}

	if s.store != nil {
		raw, err := os.Open(workingPath)
		if err != nil {
			return "", domain.NewDependencyError("failed to read staged upload", err)
		}
		defer raw.Close()

		key := "documents/" + filepath.Base(input.Filename)
		if err := s.store.PutObject(ctx, key, raw, "application/pdf"); err != nil {
			os.Remove(workingPath)
			return "", domain.NewDependencyError("failed to store document", err)
		}
	}

	return workingPath, nil
}

func (s *IngestionService) buildRecords(ctx context.Context, filename string, pages []parser.Page) ([]domain.VectorRecord, error) {
	var records []domain.VectorRecord

	for groupStart := 0; groupStart < len(pages); groupStart += PageGroupSize {
		groupEnd := groupStart + PageGroupSize
		if groupEnd > len(pages) {
			groupEnd = len(pages)
		}
		pageRange := fmt.Sprintf("%d-%d", groupStart+1, groupEnd)

		groupText := buildGroupText(pages[groupStart:groupEnd], groupStart)
		if groupText == "" {
			continue
		}

		compressedGroup := codec.Compress(groupText)

		for _, chunk := range ChunkText(groupText, s.chunkCfg) {
			if len(chunk) > MaxChunkChars {
				chunk = chunk[:MaxChunkChars]
			}

			record, ok, err := s.buildRecord(ctx, filename, pageRange, compressedGroup, chunk)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			records = append(records, record)
		}
	}

	return records, nil
}

// buildRecord assembles one vector record. Enrichment and compression
// failures degrade only this chunk; embedding failure aborts the upload.
func (s *IngestionService) buildRecord(ctx context.Context, filename, pageRange, compressedGroup, chunk string) (domain.VectorRecord, bool, error) {
	embedding, err := s.embedding.GenerateEmbedding(ctx, chunk)
	if err != nil {
		return domain.VectorRecord{}, false, domain.NewDependencyError("failed to embed chunk", err)
	}

	enrichment, err := s.enricher.Enrich(ctx, chunk)
	if err != nil {
		log.Printf("ingestion: enrichment failed for chunk in %s (%s), continuing without: %v", filename, pageRange, err)
		enrichment = Enrichment{Tags: []string{}}
	}

	if codec.Compress(chunk) == "" {
		log.Printf("ingestion: compression failed for chunk in %s (%s), skipping", filename, pageRange)
		return domain.VectorRecord{}, false, nil
	}

	metadata := domain.ChunkMetadata{
		ID:             uuid.NewString(),
		SourceDocument: filename,
		PageRange:      pageRange,
		Text:           compressedGroup,
		TextPreview:    chunk,
		Tags:           enrichment.Tags,
		Summary:        enrichment.Summary,
		TokenCount:     len(strings.Fields(chunk)),
		EmbeddingModel: s.modelName,
	}
	metadata.ApplySizeCap()

	return domain.VectorRecord{
		ID:        metadata.ID,
		Embedding: embedding,
		Metadata:  metadata,
	}, true, nil
}

// buildGroupText renders a page group as "Page N:" headed sections,
// skipping empty pages. Returns "" for an entirely empty group.
func buildGroupText(pages []parser.Page, groupStart int) string {
	sections := make([]string, 0, len(pages))
	for i, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("Page %d:\n%s", groupStart+i+1, text))
	}
	return strings.Join(sections, "\n")
}

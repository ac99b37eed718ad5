package admin

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/complexlabs/docchat/internal/config"
	"github.com/complexlabs/docchat/internal/openai"
	"github.com/complexlabs/docchat/internal/parser"
	"github.com/complexlabs/docchat/internal/repository"
	"github.com/complexlabs/docchat/internal/service"
	"github.com/complexlabs/docchat/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// IngestCmd returns the ingest command for loading a PDF from disk
// without going through the HTTP API.
func IngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Ingest a PDF into the vector index",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("DOCCHAT_OPENAI_API_KEY is required for ingestion")
	}
	if !cfg.HasParser() {
		return fmt.Errorf("DOCCHAT_PARSER_API_KEY is required for ingestion")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	var documentStore service.DocumentStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		documentStore = s3Client
	}

	modelClient := openai.NewClient(cfg.OpenAIAPIKey)
	modelLimiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.ModelRPM)), 1)
	enrichSvc := service.NewEnrichmentService(modelClient, modelLimiter, cfg.EnrichDailyQuota)
	parserClient := parser.NewClient(parser.Config{
		BaseURL: cfg.ParserBaseURL,
		APIKey:  cfg.ParserAPIKey,
	})

	ingestSvc := service.NewIngestionService(
		parserClient,
		modelClient,
		enrichSvc,
		repository.NewChunkRepository(pool),
		documentStore,
		openai.DefaultEmbeddingModelName,
	)

	log.Printf("ingesting %s (%d bytes)", path, info.Size())
	result, err := ingestSvc.Ingest(ctx, service.IngestInput{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Content:  file,
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("uploaded %d chunk(s) from %s\n", result.UploadedChunks, filepath.Base(path))
	return nil
}

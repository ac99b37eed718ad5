package admin

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/complexlabs/docchat/internal/config"
	"github.com/complexlabs/docchat/internal/repository"
	"github.com/complexlabs/docchat/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// PurgeCmd returns the purge command for removing an ingested document.
func PurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <file.pdf>",
		Short: "Remove a document's chunks from the vector index",
		Long:  "Delete every chunk ingested from the named document, and its stored copy when object storage is configured",
		Args:  cobra.ExactArgs(1),
		RunE:  runPurge,
	}
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := filepath.Base(args[0])

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	deleted, err := repository.NewChunkRepository(pool).DeleteBySource(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

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
		if err := s3Client.DeleteObject(ctx, "documents/"+name); err != nil {
			log.Printf("purge: failed to delete stored copy of %s: %v", name, err)
		}
	}

	fmt.Printf("deleted %d chunk(s) from %s\n", deleted, name)
	return nil
}

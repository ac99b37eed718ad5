package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/complexlabs/docchat/internal/api/handlers"
	"github.com/complexlabs/docchat/internal/config"
	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/jobs"
	"github.com/complexlabs/docchat/internal/openai"
	"github.com/complexlabs/docchat/internal/parser"
	"github.com/complexlabs/docchat/internal/repository"
	"github.com/complexlabs/docchat/internal/server"
	"github.com/complexlabs/docchat/internal/service"
	"github.com/complexlabs/docchat/internal/storage"
	"github.com/complexlabs/docchat/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docchat API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	sessionRepo := repository.NewSessionRepository(pool)
	chatRepo := repository.NewChatRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

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
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		documentStore = s3Client
	}

	// One token bucket shared across every generative model call
	modelLimiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.ModelRPM)), 1)

	sessionSvc := service.NewSessionService(sessionRepo, chatRepo)

	var answerSvc handlers.AnswerService = &unconfiguredAnswerService{}
	var ingestSvc handlers.Ingestor = &unconfiguredIngestor{}
	if cfg.HasOpenAI() {
		modelClient := openai.NewClient(cfg.OpenAIAPIKey)

		retrievalSvc := service.NewRetrievalService(modelClient, chunkRepo)
		answerSvc = service.NewAnswerService(retrievalSvc, chatRepo, modelClient, modelLimiter)

		if cfg.HasParser() {
			parserClient := parser.NewClient(parser.Config{
				BaseURL: cfg.ParserBaseURL,
				APIKey:  cfg.ParserAPIKey,
			})
			enrichSvc := service.NewEnrichmentService(modelClient, modelLimiter, cfg.EnrichDailyQuota)
			ingestSvc = service.NewIngestionService(
				parserClient,
				modelClient,
				enrichSvc,
				chunkRepo,
				documentStore,
				openai.DefaultEmbeddingModelName,
			)
		}
	}

	sweeper := jobs.NewTraceSweeper(chatRepo)
	sweeperWorker := jobs.NewWorker(sweeper, 10*time.Minute)
	go sweeperWorker.Start(ctx)
	log.Println("trace sweeper started")

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:    handlers.NewChatHandler(answerSvc, sessionSvc),
		SessionHandler: handlers.NewSessionHandler(sessionSvc),
		UploadHandler:  handlers.NewUploadHandler(ingestSvc),
		CORSOrigin:     cfg.CORSOrigin,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	sweeperWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

type unconfiguredAnswerService struct{}

func (s *unconfiguredAnswerService) Ask(ctx context.Context, sessionID, question string) (*service.AnswerResult, error) {
	return nil, domain.NewDependencyError("answer service not configured", fmt.Errorf("DOCCHAT_OPENAI_API_KEY required"))
}

type unconfiguredIngestor struct{}

func (s *unconfiguredIngestor) Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	return nil, domain.NewDependencyError("ingestion not configured", fmt.Errorf("DOCCHAT_OPENAI_API_KEY and DOCCHAT_PARSER_API_KEY required"))
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
